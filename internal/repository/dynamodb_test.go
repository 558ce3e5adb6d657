package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"estate-assistant/internal/domain"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	putErr       error
	queryOut     *dynamodb.QueryOutput
	queryErr     error
	txErr        error
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
	lastQueryIn  *dynamodb.QueryInput
	lastTxInput  *dynamodb.TransactWriteItemsInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	return f.queryOut, f.queryErr
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.lastTxInput = in
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

func sAttr(item map[string]types.AttributeValue, key string) string {
	v, _ := strAttr(item, key)
	return v
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "estate-table")
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "t")
	require.ErrorContains(t, err, "api must not be nil")
	_, err = New(&fakeDynamo{}, " ")
	require.ErrorContains(t, err, "table name")
}

func TestSaveAndLoadProfile(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	p := domain.NewUserProfile("v1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	p.Preferences.PropertyType = "T2"
	p.Summary.LeadScore = 85
	p.Summary.QualificationStatus = domain.StatusHot

	require.NoError(t, c.SaveProfile(context.Background(), p))
	item := db.lastPutInput.Item
	require.Equal(t, "estate-table", *db.lastPutInput.TableName)
	require.Equal(t, "VISITOR#v1", sAttr(item, "PK"))
	require.Equal(t, "PROFILE#", sAttr(item, "SK"))
	require.Equal(t, "hot", sAttr(item, "qualificationStatus"))
	require.Equal(t, "85", item["leadScore"].(*types.AttributeValueMemberN).Value)

	db.getOut = &dynamodb.GetItemOutput{Item: item}
	got, found, err := c.LoadProfile(context.Background(), "v1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "T2", got.Preferences.PropertyType)
	require.Equal(t, 85, got.Summary.LeadScore)
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestLoadProfile_NotFoundAndErrors(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	c := mustNewClient(t, db)
	_, found, err := c.LoadProfile(context.Background(), "v1")
	require.NoError(t, err)
	require.False(t, found)

	db.getOut = &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: "VISITOR#v1"},
		"profile": &types.AttributeValueMemberS{Value: "{broken"},
	}}
	_, _, err = c.LoadProfile(context.Background(), "v1")
	require.ErrorContains(t, err, "decode profile")

	db.getErr = errors.New("throttled")
	_, _, err = c.LoadProfile(context.Background(), "v1")
	require.ErrorContains(t, err, "throttled")
}

func TestSaveProfile_RequiresVisitor(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	require.Error(t, c.SaveProfile(context.Background(), domain.UserProfile{}))
}

func TestAppendInteraction(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	ts := time.Date(2026, 2, 3, 10, 0, 0, 123, time.UTC)

	err := c.AppendInteraction(context.Background(), "v1", domain.Turn{
		Text:      "Estou interessado no apartamento A1",
		Sender:    domain.SenderUser,
		Timestamp: ts,
		Intent:    domain.IntentApartmentInquiry,
		Entities:  []domain.Entity{{Type: domain.EntityApartmentID, Value: "A1", Confidence: 0.8}},
	})
	require.NoError(t, err)

	in := db.lastPutInput
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *in.ConditionExpression)
	require.Equal(t, "VISITOR#v1", sAttr(in.Item, "PK"))
	require.Equal(t, "MSG#2026-02-03T10:00:00.000000123Z", sAttr(in.Item, "SK"))
	require.Equal(t, "apartment_inquiry", sAttr(in.Item, "intent"))
	require.Contains(t, sAttr(in.Item, "entities"), `"A1"`)

	db.putErr = errors.New("conditional check failed")
	require.ErrorContains(t, c.AppendInteraction(context.Background(), "v1", domain.Turn{Text: "x"}), "conditional")
}

func TestRecentInteractions_ReturnsChronological(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		{
			"PK":     &types.AttributeValueMemberS{Value: "VISITOR#v1"},
			"SK":     &types.AttributeValueMemberS{Value: "MSG#2026-02-03T10:00:02Z"},
			"text":   &types.AttributeValueMemberS{Value: "Claro! O A1 é um T2."},
			"sender": &types.AttributeValueMemberS{Value: "bot"},
		},
		{
			"PK":       &types.AttributeValueMemberS{Value: "VISITOR#v1"},
			"SK":       &types.AttributeValueMemberS{Value: "MSG#2026-02-03T10:00:01Z"},
			"text":     &types.AttributeValueMemberS{Value: "Fale-me do A1"},
			"sender":   &types.AttributeValueMemberS{Value: "user"},
			"intent":   &types.AttributeValueMemberS{Value: "apartment_inquiry"},
			"entities": &types.AttributeValueMemberS{Value: `[{"type":"apartment_id","value":"A1","confidence":0.8,"start":11,"end":13}]`},
		},
	}}}
	c := mustNewClient(t, db)

	turns, err := c.RecentInteractions(context.Background(), "v1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, "Fale-me do A1", turns[0].Text)
	require.Equal(t, domain.SenderUser, turns[0].Sender)
	require.Equal(t, domain.IntentApartmentInquiry, turns[0].Intent)
	require.Equal(t, "A1", turns[0].Entities[0].Value)
	require.Equal(t, domain.SenderBot, turns[1].Sender)
	require.Equal(t, time.Date(2026, 2, 3, 10, 0, 2, 0, time.UTC), turns[1].Timestamp)

	require.False(t, *db.lastQueryIn.ScanIndexForward)
	require.EqualValues(t, 10, *db.lastQueryIn.Limit)
}

func TestRecentInteractions_Errors(t *testing.T) {
	db := &fakeDynamo{queryErr: errors.New("boom")}
	c := mustNewClient(t, db)
	_, err := c.RecentInteractions(context.Background(), "v1", 10)
	require.ErrorContains(t, err, "boom")

	db.queryErr = nil
	db.queryOut = &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		{"SK": &types.AttributeValueMemberS{Value: "MSG#2026-02-03T10:00:01Z"}},
	}}
	_, err = c.RecentInteractions(context.Background(), "v1", 10)
	require.ErrorContains(t, err, `missing attribute "text"`)
}

func TestSaveLead(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	lead := domain.Lead{
		ID:            "LEAD-ABC-12345",
		VisitorID:     "v1",
		Qualification: domain.Qualification{Total: 90, Grade: domain.GradeA, Priority: domain.PriorityHigh},
		Status:        "new",
		CreatedAt:     time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.SaveLead(context.Background(), lead))

	items := db.lastTxInput.TransactItems
	require.Len(t, items, 2)
	require.Equal(t, "LEAD#LEAD-ABC-12345", sAttr(items[0].Put.Item, "PK"))
	require.Equal(t, "META#", sAttr(items[0].Put.Item, "SK"))
	require.Equal(t, "A", sAttr(items[0].Put.Item, "grade"))
	require.NotNil(t, items[0].Put.ConditionExpression)
	require.Equal(t, "VISITOR#v1", sAttr(items[1].Put.Item, "PK"))
	require.Equal(t, "LEAD#LEAD-ABC-12345", sAttr(items[1].Put.Item, "SK"))

	db.txErr = errors.New("transaction cancelled")
	require.ErrorContains(t, c.SaveLead(context.Background(), lead), "transaction cancelled")
	require.Error(t, c.SaveLead(context.Background(), domain.Lead{}))
}
