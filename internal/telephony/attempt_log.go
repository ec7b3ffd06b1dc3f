package telephony

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

const attemptTTL = 30 * 24 * time.Hour

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type attemptRecord struct {
	ConversationID int64  `dynamodbav:"conversationId"`
	Attempt        int    `dynamodbav:"attempt"`
	Provider       string `dynamodbav:"provider"`
	Phone          string `dynamodbav:"phone"`
	CallHandle     string `dynamodbav:"callHandle,omitempty"`
	Error          string `dynamodbav:"error,omitempty"`
	Succeeded      bool   `dynamodbav:"succeeded"`
	AttemptedAt    string `dynamodbav:"attemptedAt"`
	ExpiresAt      int64  `dynamodbav:"expiresAt"`
}

// DynamoAttemptLog keeps an audit trail of outbound placement attempts,
// keyed by conversationId (partition) and attempt (sort).
type DynamoAttemptLog struct {
	client    dynamoAPI
	tableName string
}

var _ conversation.AttemptRecorder = (*DynamoAttemptLog)(nil)

func NewDynamoAttemptLog(client dynamoAPI, tableName string) *DynamoAttemptLog {
	if client == nil {
		panic("telephony: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("telephony: table name cannot be empty")
	}
	return &DynamoAttemptLog{client: client, tableName: tableName}
}

func (l *DynamoAttemptLog) RecordAttempt(ctx context.Context, a conversation.CallAttempt) error {
	at := a.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	item, err := attributevalue.MarshalMap(attemptRecord{
		ConversationID: a.ConversationID,
		Attempt:        a.Attempt,
		Provider:       a.Provider,
		Phone:          logging.MaskPhone(a.Phone),
		CallHandle:     a.CallHandle,
		Error:          a.Error,
		Succeeded:      a.Error == "",
		AttemptedAt:    at.Format(time.RFC3339Nano),
		ExpiresAt:      at.Add(attemptTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("telephony: marshal attempt: %w", err)
	}
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("telephony: persist attempt: %w", err)
	}
	return nil
}
