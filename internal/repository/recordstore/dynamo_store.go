package recordstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/datatecnica/sampleshare/internal/domain"
	apperrors "github.com/datatecnica/sampleshare/internal/errors"
)

// DynamoStore keeps share records in a DynamoDB table keyed by record id.
// Mutations replace the whole item. Listing approximates insertion order by
// sorting on created_at, since a scan carries no ordering of its own.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoStore initializes a DynamoDB-backed record store.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

// Append stores a record as a full item.
func (s *DynamoStore) Append(ctx context.Context, record domain.ShareRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store record %s: %w", record.ID, err)
	}
	return nil
}

// Get retrieves a record by id.
func (s *DynamoStore) Get(ctx context.Context, id string) (domain.ShareRecord, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return domain.ShareRecord{}, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	if result.Item == nil {
		return domain.ShareRecord{}, fmt.Errorf("record %q: %w", id, apperrors.ErrRecordNotFound)
	}

	var record domain.ShareRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return domain.ShareRecord{}, fmt.Errorf("failed to unmarshal record %s: %w", id, err)
	}
	return record, nil
}

// UpdateStatus replaces the item with the active flag changed.
func (s *DynamoStore) UpdateStatus(ctx context.Context, id string, active bool) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	record.Active = active
	return s.Append(ctx, record)
}

// Delete removes a record by id.
func (s *DynamoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

// ListAll scans the table and returns records ordered by creation time.
func (s *DynamoStore) ListAll(ctx context.Context) ([]domain.ShareRecord, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	}

	var records []domain.ShareRecord
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan records: %w", err)
		}
		for _, item := range result.Items {
			var record domain.ShareRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal record: %w", err)
			}
			records = append(records, record)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}
