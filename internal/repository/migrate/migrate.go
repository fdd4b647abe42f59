// Package migrate manages the DynamoDB tables used by the tracking store.
package migrate

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	log "github.com/sirupsen/logrus"
)

// Migration is one versioned table change.
type Migration interface {
	Version() string
	TableName() string
	Up(ctx context.Context, client *dynamodb.Client) error
	Down(ctx context.Context, client *dynamodb.Client) error
}

func migrations() []Migration {
	return []Migration{
		&CreateShareRecordsTable{},
	}
}

// Up applies all migrations in order.
func Up(ctx context.Context, client *dynamodb.Client) error {
	for _, m := range migrations() {
		log.Infof("Applying migration %s", m.Version())
		if err := m.Up(ctx, client); err != nil {
			return err
		}
	}
	return nil
}

// Down rolls back all migrations in reverse order.
func Down(ctx context.Context, client *dynamodb.Client) error {
	ms := migrations()
	for i := len(ms) - 1; i >= 0; i-- {
		log.Infof("Rolling back migration %s", ms[i].Version())
		if err := ms[i].Down(ctx, client); err != nil {
			return err
		}
	}
	return nil
}
