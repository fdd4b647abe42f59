package migrate

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	ShareRecordsTableName = "share_records"
	ShareRecordsVersion   = "20250901000000_share_records_table"
)

type CreateShareRecordsTable struct{}

func (m *CreateShareRecordsTable) Version() string {
	return ShareRecordsVersion
}

func (m *CreateShareRecordsTable) TableName() string {
	return ShareRecordsTableName
}

func (m *CreateShareRecordsTable) Up(ctx context.Context, client *dynamodb.Client) error {
	input := &dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       types.KeyTypeHash, // Partition Key
			},
		},
		TableName:   aws.String(ShareRecordsTableName),
		BillingMode: types.BillingModePayPerRequest, // On-demand billing for variable workloads
		Tags: []types.Tag{
			{
				Key:   aws.String("Purpose"),
				Value: aws.String("SampleShareTracking"),
			},
		},
	}

	// Create the table
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		return err
	}

	// Wait for table to become active
	waiter := dynamodb.NewTableExistsWaiter(client)
	err = waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(ShareRecordsTableName),
	}, 5*time.Minute)

	return err
}

func (m *CreateShareRecordsTable) Down(ctx context.Context, client *dynamodb.Client) error {
	input := &dynamodb.DeleteTableInput{
		TableName: aws.String(ShareRecordsTableName),
	}

	_, err := client.DeleteTable(ctx, input)
	return err
}
