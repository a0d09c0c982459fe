package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"wa-bot/internal/domain"
)

const (
	skPrefixTopic = "TOPIC#"
	skBudget      = "BUDGET"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Client stores conversation states and budgets in a single DynamoDB table
// keyed by user. Items carry no TTL: an abandoned conversation stays until the
// user cancels or finishes it.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// userPK returns the partition key for everything stored about a user.
func userPK(userID string) string {
	return "USER#" + userID
}

// topicSK returns the sort key of a user's conversation on topic.
func topicSK(topic domain.Topic) string {
	return skPrefixTopic + string(topic)
}

func (c *Client) key(userID, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// Get loads the conversation state for (userID, topic).
func (c *Client) Get(ctx context.Context, userID string, topic domain.Topic) (domain.ConversationState, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(userID, topicSK(topic)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ConversationState{}, false, fmt.Errorf("repository: Get conversation: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ConversationState{}, false, nil
	}
	st, err := itemToState(out.Item)
	if err != nil {
		return domain.ConversationState{}, false, fmt.Errorf("repository: Get conversation decode: %w", err)
	}
	return st, true, nil
}

// Put writes or replaces the conversation state.
func (c *Client) Put(ctx context.Context, state domain.ConversationState) error {
	if state.UserID == "" || state.Topic == "" {
		return errors.New("repository: Put conversation: user and topic are required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      c.stateItem(state),
	})
	if err != nil {
		return fmt.Errorf("repository: Put conversation: %w", err)
	}
	return nil
}

// Delete removes the conversation state; deleting a missing item is not an error.
func (c *Client) Delete(ctx context.Context, userID string, topic domain.Topic) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       c.key(userID, topicSK(topic)),
	})
	if err != nil {
		return fmt.Errorf("repository: Delete conversation: %w", err)
	}
	return nil
}

// GetBudget returns the user's monthly budget, if one was set.
func (c *Client) GetBudget(ctx context.Context, userID string) (domain.Budget, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key:       c.key(userID, skBudget),
	})
	if err != nil {
		return domain.Budget{}, false, fmt.Errorf("repository: GetBudget get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Budget{}, false, nil
	}
	monthly, err := decimalAttr(out.Item, "monthly")
	if err != nil {
		return domain.Budget{}, false, fmt.Errorf("repository: GetBudget decode monthly: %w", err)
	}
	return domain.Budget{UserID: userID, Monthly: monthly}, true, nil
}

// SetBudget writes the user's monthly budget.
func (c *Client) SetBudget(ctx context.Context, b domain.Budget) error {
	if b.UserID == "" {
		return errors.New("repository: SetBudget: user is required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: userPK(b.UserID)},
			"SK":        &types.AttributeValueMemberS{Value: skBudget},
			"userId":    &types.AttributeValueMemberS{Value: b.UserID},
			"monthly":   &types.AttributeValueMemberN{Value: b.Monthly.String()},
			"updatedAt": &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SetBudget: %w", err)
	}
	return nil
}

func (c *Client) stateItem(st domain.ConversationState) map[string]types.AttributeValue {
	fields := make([]types.AttributeValue, 0, len(st.Record))
	for _, f := range st.Record {
		fields = append(fields, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"name":  &types.AttributeValueMemberS{Value: f.Name},
			"value": &types.AttributeValueMemberS{Value: f.Value},
		}})
	}
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: userPK(st.UserID)},
		"SK":        &types.AttributeValueMemberS{Value: topicSK(st.Topic)},
		"userId":    &types.AttributeValueMemberS{Value: st.UserID},
		"topic":     &types.AttributeValueMemberS{Value: string(st.Topic)},
		"step":      &types.AttributeValueMemberN{Value: strconv.Itoa(st.Step)},
		"fields":    &types.AttributeValueMemberL{Value: fields},
		"updatedAt": &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339)},
	}
}

// itemToState converts a DynamoDB attribute map to a ConversationState.
func itemToState(item map[string]types.AttributeValue) (domain.ConversationState, error) {
	userID, err := strAttr(item, "userId")
	if err != nil {
		return domain.ConversationState{}, err
	}
	topic, err := strAttr(item, "topic")
	if err != nil {
		return domain.ConversationState{}, err
	}
	step, err := intAttr(item, "step")
	if err != nil {
		return domain.ConversationState{}, err
	}

	var rec domain.Record
	if v, ok := item["fields"]; ok {
		list, ok := v.(*types.AttributeValueMemberL)
		if !ok {
			return domain.ConversationState{}, errors.New(`repository: attribute "fields" is not a list`)
		}
		for i, el := range list.Value {
			m, ok := el.(*types.AttributeValueMemberM)
			if !ok {
				return domain.ConversationState{}, fmt.Errorf("repository: field %d is not a map", i)
			}
			name, err := strAttr(m.Value, "name")
			if err != nil {
				return domain.ConversationState{}, err
			}
			value, err := strAttr(m.Value, "value")
			if err != nil {
				return domain.ConversationState{}, err
			}
			rec = append(rec, domain.Field{Name: name, Value: value})
		}
	}

	return domain.ConversationState{
		UserID: userID,
		Topic:  domain.Topic(topic),
		Step:   step,
		Record: rec,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func decimalAttr(item map[string]types.AttributeValue, key string) (decimal.Decimal, error) {
	v, ok := item[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return decimal.Zero, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	d, err := decimal.NewFromString(n.Value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return d, nil
}
