package config

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// TrackingConfig selects and configures the share record store backend.
type TrackingConfig struct {
	Backend  string `yaml:"backend"` // "file" or "dynamodb"
	FilePath string `yaml:"file_path"`
	Table    string `yaml:"table"`
}

// EmailConfig holds SMTP settings for share notifications. The password may
// be supplied directly or resolved from an SSM parameter at load time.
type EmailConfig struct {
	SMTPServer        string `yaml:"smtp_server"`
	SMTPPort          int    `yaml:"smtp_port"`
	UseTLS            bool   `yaml:"use_tls"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	PasswordParameter string `yaml:"password_parameter"`
	FromAddress       string `yaml:"from_address"`
}

// Config holds the application configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	// Platform selects the object store backend ("gcs" or "s3").
	Platform     string `yaml:"platform"`
	Region       string `yaml:"region"`
	GCPProject   string `yaml:"gcp_project"`
	SourceBucket string `yaml:"source_bucket"`
	// SourcePrefix is the directory under which sample folders live in the
	// source bucket.
	SourcePrefix    string         `yaml:"source_prefix"`
	CopyConcurrency int            `yaml:"copy_concurrency"`
	Tracking        TrackingConfig `yaml:"tracking"`
	Email           EmailConfig    `yaml:"email"`

	// AwsConfig: the AWS SDK uses a shared configuration object containing
	// credentials, region, retry policies, etc. The S3, DynamoDB, SSM and
	// tagging clients are all created from this single config.
	AwsConfig aws.Config
	// GcsClient: the Google Cloud SDK uses individual service clients that
	// resolve their own credentials via environment variables, service
	// account files, or the metadata service. Only created when the
	// platform is gcs.
	GcsClient *storage.Client
}

// LoadConfig loads configuration from config.yaml, environment variables, or
// CLI flags. Priority: CLI flags > environment variables > config.yaml >
// defaults.
func LoadConfig(configPath string, rootCmd *cobra.Command) (*Config, error) {
	if err := setupViper(configPath, rootCmd); err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:        viper.GetString("log_level"),
		Platform:        viper.GetString("platform"),
		Region:          viper.GetString("region"),
		GCPProject:      viper.GetString("gcp_project"),
		SourceBucket:    viper.GetString("source_bucket"),
		SourcePrefix:    viper.GetString("source_prefix"),
		CopyConcurrency: viper.GetInt("copy_concurrency"),
		Tracking: TrackingConfig{
			Backend:  viper.GetString("tracking.backend"),
			FilePath: viper.GetString("tracking.file_path"),
			Table:    viper.GetString("tracking.table"),
		},
		Email: EmailConfig{
			SMTPServer:        viper.GetString("email.smtp_server"),
			SMTPPort:          viper.GetInt("email.smtp_port"),
			UseTLS:            viper.GetBool("email.use_tls"),
			Username:          viper.GetString("email.username"),
			Password:          viper.GetString("email.password"),
			PasswordParameter: viper.GetString("email.password_parameter"),
			FromAddress:       viper.GetString("email.from_address"),
		},
	}

	awsConfig, err := loadAWSConfig(cfg.Region)
	if err != nil {
		return nil, err
	}
	cfg.AwsConfig = awsConfig

	if cfg.Platform == "gcs" {
		gcsClient, err := loadGCSClient()
		if err != nil {
			return nil, err
		}
		cfg.GcsClient = gcsClient
	}

	if cfg.Email.Password == "" && cfg.Email.PasswordParameter != "" {
		password, err := resolveSSMParameter(awsConfig, cfg.Email.PasswordParameter)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve SMTP password from SSM: %w", err)
		}
		cfg.Email.Password = password
	}

	return cfg, nil
}

// setupViper configures Viper with defaults, paths, and bindings.
func setupViper(configPath string, rootCmd *cobra.Command) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	setDefaults()
	viper.AutomaticEnv()

	if rootCmd != nil {
		if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("platform", "gcs")
	viper.SetDefault("region", "us-central1")
	viper.SetDefault("source_prefix", "FulgentTF")
	viper.SetDefault("copy_concurrency", 4)
	viper.SetDefault("tracking.backend", "file")
	viper.SetDefault("tracking.file_path", "data/tracking.json")
	viper.SetDefault("tracking.table", "share_records")
	viper.SetDefault("email.smtp_port", 587)
	viper.SetDefault("email.use_tls", true)
}

// loadAWSConfig loads the AWS SDK shared configuration.
func loadAWSConfig(region string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return cfg, nil
}

// loadGCSClient creates the Google Cloud Storage client.
func loadGCSClient() (*storage.Client, error) {
	client, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("unable to create GCS client: %w", err)
	}
	return client, nil
}

// resolveSSMParameter fetches a decrypted SecureString parameter.
func resolveSSMParameter(awsConfig aws.Config, name string) (string, error) {
	client := ssm.NewFromConfig(awsConfig)
	out, err := client.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", name)
	}
	return *out.Parameter.Value, nil
}
