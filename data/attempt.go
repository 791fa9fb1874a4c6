// Package data holds the broker's verification attempt ledger.
package data

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

type DB interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type AttemptStatus string

const (
	AttemptPending AttemptStatus = "pending"
	AttemptPassed  AttemptStatus = "passed"
	AttemptFailed  AttemptStatus = "failed"
)

// Attempt is one verification attempt keyed by the hash of its one-time
// token. The raw token is never stored. One grant backs one attempt, so
// a token hash that already passed marks a replay.
type Attempt struct {
	TokenHash string        `dynamodbav:"TokenHash"`
	ID        string        `dynamodbav:"ID"`
	UserID    string        `dynamodbav:"UserID"`
	ClaimType string        `dynamodbav:"ClaimType"`
	Status    AttemptStatus `dynamodbav:"Status"`
	CreatedAt time.Time     `dynamodbav:"CreatedAt,unixtime"`
	ExpiresAt time.Time     `dynamodbav:"ExpiresAt,unixtime"`
}

func (a *Attempt) DatabaseKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"TokenHash": &types.AttributeValueMemberS{Value: a.TokenHash},
	}
}

func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type AttemptIndices struct {
	ByUserID string
}

type AttemptTable struct {
	db       DB
	tableARN string
	indices  AttemptIndices
}

func NewAttemptTable(db DB, tableARN string, indices AttemptIndices) *AttemptTable {
	return &AttemptTable{
		db:       db,
		tableARN: tableARN,
		indices:  indices,
	}
}

func (t *AttemptTable) TableARN() string {
	return t.tableARN
}

const attemptTTL = 24 * time.Hour

// Record writes a fresh pending attempt for a newly issued grant.
func (t *AttemptTable) Record(ctx context.Context, userID string, token string, claimType string) (*Attempt, error) {
	now := time.Now()
	attempt := &Attempt{
		TokenHash: TokenHash(token),
		ID:        uuid.New().String(),
		UserID:    userID,
		ClaimType: claimType,
		Status:    AttemptPending,
		CreatedAt: now,
		ExpiresAt: now.Add(attemptTTL),
	}

	av, err := attributevalue.MarshalMap(attempt)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}
	input := &dynamodb.PutItemInput{
		TableName: &t.tableARN,
		Item:      av,
	}
	if _, err := t.db.PutItem(ctx, input); err != nil {
		return nil, fmt.Errorf("PutItem: %w", err)
	}
	return attempt, nil
}

func (t *AttemptTable) Get(ctx context.Context, token string) (*Attempt, bool, error) {
	attempt := Attempt{TokenHash: TokenHash(token)}

	out, err := t.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &t.tableARN,
		Key:       attempt.DatabaseKey(),
	})
	if err != nil {
		return nil, false, fmt.Errorf("GetItem: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	if err := attributevalue.UnmarshalMap(out.Item, &attempt); err != nil {
		return nil, false, fmt.Errorf("unmarshal result: %w", err)
	}
	return &attempt, true, nil
}

// SetStatus moves an attempt to its terminal judgement.
func (t *AttemptTable) SetStatus(ctx context.Context, token string, status AttemptStatus) error {
	attempt := Attempt{TokenHash: TokenHash(token)}

	input := &dynamodb.UpdateItemInput{
		TableName:        &t.tableARN,
		Key:              attempt.DatabaseKey(),
		UpdateExpression: aws.String("SET #status = :status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
	}
	if _, err := t.db.UpdateItem(ctx, input); err != nil {
		return fmt.Errorf("UpdateItem: %w", err)
	}
	return nil
}
