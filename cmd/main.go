package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/datatecnica/sampleshare/internal/config"
	"github.com/datatecnica/sampleshare/internal/logging"
	"github.com/datatecnica/sampleshare/internal/notify"
	"github.com/datatecnica/sampleshare/internal/repository/migrate"
	"github.com/datatecnica/sampleshare/internal/repository/objectstore"
	"github.com/datatecnica/sampleshare/internal/repository/recordstore"
	"github.com/datatecnica/sampleshare/internal/service"
)

var (
	cfg          *config.Config
	shareService *service.ShareService
)

var configPath string
var quiet bool

var rootCmd = &cobra.Command{
	Use:   "sampleshare",
	Short: "CLI application for sharing sample data from cloud storage",
	Long:  "A CLI application for copying sample files to recipient-accessible storage, notifying recipients with time-limited download links, and tracking shares until they expire",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress bars")
	cobra.OnInitialize(initConfig)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize and migrate the tracking database",
	Run: func(cmd *cobra.Command, args []string) {
		client := dynamodb.NewFromConfig(cfg.AwsConfig)
		if err := migrate.Up(context.Background(), client); err != nil {
			fmt.Printf("Failed to migrate the database: %v\n", err)
			return
		}
		fmt.Println("Database initialized and migrated successfully")
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back tracking database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		client := dynamodb.NewFromConfig(cfg.AwsConfig)
		if err := migrate.Down(context.Background(), client); err != nil {
			fmt.Printf("Failed to roll back migrations: %v\n", err)
			return
		}
		fmt.Println("Database migrations rolled back successfully")
	},
}

func initConfig() {
	var err error
	cfg, err = config.LoadConfig(configPath, rootCmd)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logging.InitLogger(cfg)

	gateway, err := objectstore.NewGateway(cfg)
	if err != nil {
		log.Fatalf("Failed to create object store gateway: %v", err)
	}

	records, err := recordstore.NewStore(cfg)
	if err != nil {
		log.Fatalf("Failed to create record store: %v", err)
	}

	notifier := notify.NewSMTPNotifier(cfg.Email)

	shareService = service.NewShareService(
		gateway, records, notifier, cfg.Region, cfg.SourcePrefix,
		service.WithCopyConcurrency(cfg.CopyConcurrency),
		service.WithQuiet(quiet),
	)
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(downCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
