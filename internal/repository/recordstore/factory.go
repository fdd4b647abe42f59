package recordstore

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/datatecnica/sampleshare/internal/config"
)

// NewStore creates the record store selected by the tracking configuration.
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.Tracking.Backend {
	case "file":
		return NewFileStore(cfg.Tracking.FilePath), nil
	case "dynamodb":
		client := dynamodb.NewFromConfig(cfg.AwsConfig)
		return NewDynamoStore(client, cfg.Tracking.Table), nil
	default:
		return nil, fmt.Errorf("unsupported tracking backend: %s", cfg.Tracking.Backend)
	}
}
