package checkpoint

import (
	"context"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo implements DynamoClient over a map, enforcing the conditional
// put the way DynamoDB would.
type fakeDynamo struct {
	items map[string]uint64
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]uint64)}
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	name := in.Item["name"].(*types.AttributeValueMemberS).Value
	value, err := strconv.ParseUint(in.Item["checkpoint"].(*types.AttributeValueMemberN).Value, 10, 64)
	if err != nil {
		return nil, err
	}

	if existing, ok := f.items[name]; ok && existing >= value {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.items[name] = value
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	name := in.Key["name"].(*types.AttributeValueMemberS).Value
	value, ok := f.items[name]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{
			"name":       &types.AttributeValueMemberS{Value: name},
			"checkpoint": &types.AttributeValueMemberN{Value: strconv.FormatUint(value, 10)},
		},
	}, nil
}

func TestDynamoStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewDynamoStore(newFakeDynamo(), "checkpoints", "ingest")

	id, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, id)

	require.NoError(t, s.Save(ctx, 500))

	id, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), id)
}

func TestDynamoStoreOnlyMovesForward(t *testing.T) {
	ctx := context.Background()
	s := NewDynamoStore(newFakeDynamo(), "checkpoints", "ingest")

	require.NoError(t, s.Save(ctx, 500))

	// A stale writer must not regress the checkpoint.
	err := s.Save(ctx, 400)
	assert.ErrorIs(t, err, ErrStaleCheckpoint)

	id, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), id)
}
