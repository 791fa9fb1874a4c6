package data_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/faceproof/faceproof/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDB struct {
	items map[string]map[string]types.AttributeValue
}

func newMemDB() *memDB {
	return &memDB{items: map[string]map[string]types.AttributeValue{}}
}

func itemKey(key map[string]types.AttributeValue) string {
	return key["TokenHash"].(*types.AttributeValueMemberS).Value
}

func (m *memDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.items[itemKey(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: m.items[itemKey(params.Key)]}, nil
}

func (m *memDB) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	item, ok := m.items[itemKey(params.Key)]
	if !ok {
		return &dynamodb.UpdateItemOutput{}, nil
	}
	// Only the status update expression is used by the table.
	item["Status"] = params.ExpressionAttributeValues[":status"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func TestAttemptTableRecordAndGet(t *testing.T) {
	db := newMemDB()
	table := data.NewAttemptTable(db, "attempts", data.AttemptIndices{ByUserID: "UserID-Index"})

	recorded, err := table.Record(context.Background(), "u1", "tok-1", "enrol")
	require.NoError(t, err)
	assert.NotEmpty(t, recorded.ID)
	assert.Equal(t, data.TokenHash("tok-1"), recorded.TokenHash)
	assert.Equal(t, data.AttemptPending, recorded.Status)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), recorded.ExpiresAt, 5*time.Second)

	got, found, err := table.Get(context.Background(), "tok-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "enrol", got.ClaimType)
	assert.Equal(t, data.AttemptPending, got.Status)
	assert.Equal(t, recorded.ID, got.ID)
}

func TestAttemptTableGetMissing(t *testing.T) {
	table := data.NewAttemptTable(newMemDB(), "attempts", data.AttemptIndices{})

	_, found, err := table.Get(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAttemptTableSetStatus(t *testing.T) {
	db := newMemDB()
	table := data.NewAttemptTable(db, "attempts", data.AttemptIndices{})

	_, err := table.Record(context.Background(), "u1", "tok-1", "verify")
	require.NoError(t, err)

	require.NoError(t, table.SetStatus(context.Background(), "tok-1", data.AttemptPassed))

	got, found, err := table.Get(context.Background(), "tok-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, data.AttemptPassed, got.Status)
}

func TestTokenHashStable(t *testing.T) {
	assert.Equal(t, data.TokenHash("tok-1"), data.TokenHash("tok-1"))
	assert.NotEqual(t, data.TokenHash("tok-1"), data.TokenHash("tok-2"))
	// The raw token never appears in the stored key.
	assert.NotContains(t, data.TokenHash("tok-1"), "tok-1")
}
