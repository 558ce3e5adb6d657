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

	"estate-assistant/internal/domain"
)

const (
	skProfile      = "PROFILE#"
	skPrefixMsg    = "MSG#"
	skPrefixLead   = "LEAD#"
	skMeta         = "META#"
	interactionTTL = 90 * 24 * time.Hour
)

// dynamodbAPI is satisfied by *dynamodb.Client.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client keeps everything in one table keyed by PK/SK:
//
//	VISITOR#<id> PROFILE#          visitor profile
//	VISITOR#<id> MSG#<timestamp>   one conversation turn
//	VISITOR#<id> LEAD#<lead id>    pointer to a lead
//	LEAD#<id>    META#             the lead
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

func visitorPK(visitorID string) string { return "VISITOR#" + visitorID }

func leadPK(leadID string) string { return "LEAD#" + leadID }

func msgSK(ts time.Time) string {
	return skPrefixMsg + ts.UTC().Format(time.RFC3339Nano)
}

func (c *Client) LoadProfile(ctx context.Context, visitorID string) (domain.UserProfile, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: visitorPK(visitorID)},
			"SK": &types.AttributeValueMemberS{Value: skProfile},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("repository: LoadProfile get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.UserProfile{}, false, nil
	}
	raw, err := strAttr(out.Item, "profile")
	if err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("repository: LoadProfile: %w", err)
	}
	p, err := decodeProfile(raw)
	if err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("repository: LoadProfile: %w", err)
	}
	return p, true, nil
}

// SaveProfile replaces the profile item. Lead score and status are duplicated
// as top-level attributes so they can be filtered on.
func (c *Client) SaveProfile(ctx context.Context, p domain.UserProfile) error {
	if p.VisitorID == "" {
		return errors.New("repository: SaveProfile: visitor id is required")
	}
	raw, err := encode(p)
	if err != nil {
		return fmt.Errorf("repository: SaveProfile: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":                  &types.AttributeValueMemberS{Value: visitorPK(p.VisitorID)},
			"SK":                  &types.AttributeValueMemberS{Value: skProfile},
			"visitorId":           &types.AttributeValueMemberS{Value: p.VisitorID},
			"profile":             &types.AttributeValueMemberS{Value: raw},
			"leadScore":           &types.AttributeValueMemberN{Value: strconv.Itoa(p.Summary.LeadScore)},
			"qualificationStatus": &types.AttributeValueMemberS{Value: string(p.Summary.QualificationStatus)},
			"updatedAt":           &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveProfile: %w", err)
	}
	return nil
}

// RecentInteractions returns the newest limit turns in chronological order.
func (c *Client) RecentInteractions(ctx context.Context, visitorID string, limit int) ([]domain.Turn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: visitorPK(visitorID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: RecentInteractions query: %w", err)
	}
	turns := make([]domain.Turn, 0, len(out.Items))
	for _, item := range out.Items {
		t, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: RecentInteractions unmarshal: %w", err)
		}
		turns = append(turns, t)
	}
	reverse(turns)
	return turns, nil
}

func (c *Client) AppendInteraction(ctx context.Context, visitorID string, turn domain.Turn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = c.now()
	}
	item, err := c.turnItem(visitorID, turn)
	if err != nil {
		return fmt.Errorf("repository: AppendInteraction: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: AppendInteraction: %w", err)
	}
	return nil
}

// SaveLead writes the lead and the visitor's pointer to it in one transaction.
// A lead id can only be written once.
func (c *Client) SaveLead(ctx context.Context, lead domain.Lead) error {
	if lead.ID == "" {
		return errors.New("repository: SaveLead: lead id is required")
	}
	raw, err := encode(lead)
	if err != nil {
		return fmt.Errorf("repository: SaveLead: %w", err)
	}
	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName: aws.String(c.tableName),
			Item: map[string]types.AttributeValue{
				"PK":        &types.AttributeValueMemberS{Value: leadPK(lead.ID)},
				"SK":        &types.AttributeValueMemberS{Value: skMeta},
				"visitorId": &types.AttributeValueMemberS{Value: lead.VisitorID},
				"grade":     &types.AttributeValueMemberS{Value: string(lead.Qualification.Grade)},
				"priority":  &types.AttributeValueMemberS{Value: string(lead.Qualification.Priority)},
				"status":    &types.AttributeValueMemberS{Value: lead.Status},
				"lead":      &types.AttributeValueMemberS{Value: raw},
			},
			ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
		},
	}}
	if lead.VisitorID != "" {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(c.tableName),
				Item: map[string]types.AttributeValue{
					"PK":        &types.AttributeValueMemberS{Value: visitorPK(lead.VisitorID)},
					"SK":        &types.AttributeValueMemberS{Value: skPrefixLead + lead.ID},
					"createdAt": &types.AttributeValueMemberS{Value: lead.CreatedAt.UTC().Format(time.RFC3339)},
				},
			},
		})
	}
	if _, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("repository: SaveLead: %w", err)
	}
	return nil
}

func (c *Client) turnItem(visitorID string, t domain.Turn) (map[string]types.AttributeValue, error) {
	item := map[string]types.AttributeValue{
		"PK":     &types.AttributeValueMemberS{Value: visitorPK(visitorID)},
		"SK":     &types.AttributeValueMemberS{Value: msgSK(t.Timestamp)},
		"text":   &types.AttributeValueMemberS{Value: t.Text},
		"sender": &types.AttributeValueMemberS{Value: string(t.Sender)},
		"ttl":    &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Timestamp.Add(interactionTTL).Unix(), 10)},
	}
	if t.Intent != "" {
		item["intent"] = &types.AttributeValueMemberS{Value: string(t.Intent)}
	}
	if len(t.Entities) > 0 {
		raw, err := encode(t.Entities)
		if err != nil {
			return nil, err
		}
		item["entities"] = &types.AttributeValueMemberS{Value: raw}
	}
	return item, nil
}

func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Turn{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimPrefix(sk, skPrefixMsg))
	if err != nil {
		return domain.Turn{}, fmt.Errorf("repository: parse sort key %q: %w", sk, err)
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.Turn{}, err
	}
	sender, _ := strAttr(item, "sender") // allow empty
	intent, _ := strAttr(item, "intent") // allow empty
	rawEntities, _ := strAttr(item, "entities")
	entities, err := decodeEntities(rawEntities)
	if err != nil {
		return domain.Turn{}, err
	}
	return domain.Turn{
		Text:      text,
		Sender:    domain.Sender(sender),
		Timestamp: ts,
		Intent:    domain.Intent(intent),
		Entities:  entities,
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
