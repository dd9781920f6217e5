package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrStaleCheckpoint is returned when a Save would move the checkpoint
// backwards, which indicates a second ingester wrote a newer value.
var ErrStaleCheckpoint = errors.New("checkpoint already ahead of saved value")

// DynamoClient is the subset of the DynamoDB API the store needs.
type DynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore persists the checkpoint in a DynamoDB table using a
// conditional put so it only ever moves forward. Ingestion is contracted to
// run single-instance; the condition turns an accidental second instance
// into a visible ErrStaleCheckpoint instead of silent regression.
//
// Table schema: partition key `name` (string); attribute `checkpoint` (number).
type DynamoStore struct {
	client DynamoClient
	table  string
	name   string
}

// NewDynamoStore creates a DynamoStore writing the checkpoint item `name`
// in the given table.
func NewDynamoStore(client DynamoClient, table, name string) *DynamoStore {
	return &DynamoStore{client: client, table: table, name: name}
}

// Load reads the current checkpoint, or 0 when the item does not exist.
func (s *DynamoStore) Load(ctx context.Context) (uint64, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: s.name},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if out.Item == nil {
		return 0, nil
	}

	attr, ok := out.Item["checkpoint"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("checkpoint item has no numeric checkpoint attribute")
	}
	id, err := strconv.ParseUint(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse checkpoint %q: %w", attr.Value, err)
	}
	return id, nil
}

// Save writes the checkpoint, conditioned on only moving forward.
func (s *DynamoStore) Save(ctx context.Context, id uint64) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"name":       &types.AttributeValueMemberS{Value: s.name},
			"checkpoint": &types.AttributeValueMemberN{Value: strconv.FormatUint(id, 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(checkpoint) OR checkpoint < :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.FormatUint(id, 10)},
		},
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return ErrStaleCheckpoint
		}
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
