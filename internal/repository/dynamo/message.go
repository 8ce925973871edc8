// Package dynamo implements the Message Store's Repository seam
// (internal/service/message) on a single DynamoDB table, following the
// PK/SK/Data item shape the teacher uses for its own metrics storage.
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/service/message"
)

// item is the on-disk shape of a SentEmail record, matching the
// teacher's PK/SK/Data single-table pattern (storage/aws.go's
// DynamoDBItem). GSI1PK/GSI1SK back the MessageID lookup.
type item struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK string `dynamodbav:"GSI1SK,omitempty"`
	Email  string `dynamodbav:"Email"`
	Status string `dynamodbav:"Status"`
	Data   string `dynamodbav:"Data"`
}

const messageIDIndex = "GSI1"

// MessageStore is the DynamoDB-backed internal/service/message.Repository.
type MessageStore struct {
	client    *dynamodb.Client
	tableName string
}

// Config configures MessageStore's table and client region.
type Config struct {
	TableName string
	Region    string
}

// New builds a MessageStore over an existing DynamoDB client.
func New(client *dynamodb.Client, tableName string) *MessageStore {
	return &MessageStore{client: client, tableName: tableName}
}

func sentPK(campaignID string) string {
	return fmt.Sprintf("CAMPAIGN#%s", campaignID)
}

func sentSK(email string, day int) string {
	return fmt.Sprintf("SENT#%s#DAY#%s", email, strconv.Itoa(day))
}

func (m *MessageStore) Get(ctx context.Context, campaignID, email string, day int) (*domain.SentEmail, error) {
	out, err := m.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sentPK(campaignID)},
			"SK": &types.AttributeValueMemberS{Value: sentSK(email, day)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dynamo: get sent email: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, message.ErrNotFound
	}
	return decodeSentEmail(out.Item)
}

func (m *MessageStore) GetByMessageID(ctx context.Context, messageID string) (*domain.SentEmail, error) {
	out, err := m.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(m.tableName),
		IndexName:              aws.String(messageIDIndex),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("MSG#%s", messageID)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamo: query by message id: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, message.ErrNotFound
	}
	return decodeSentEmail(out.Items[0])
}

func (m *MessageStore) Insert(ctx context.Context, s *domain.SentEmail) error {
	it, err := encodeSentEmail(s)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("dynamo: marshal sent email: %w", err)
	}

	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(m.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var cce *types.ConditionalCheckFailedException
		if errors.As(err, &cce) {
			return message.ErrDuplicate
		}
		return fmt.Errorf("dynamo: insert sent email: %w", err)
	}
	return nil
}

func (m *MessageStore) Put(ctx context.Context, s *domain.SentEmail) error {
	it, err := encodeSentEmail(s)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("dynamo: marshal sent email: %w", err)
	}

	if _, err := m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.tableName),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("dynamo: put sent email: %w", err)
	}
	return nil
}

// dedupStatuses are the SentStatus values Testable Property 3 (spec.md's
// "already sent" dedup set) counts as "already sent": sent, delivered,
// opened, clicked, bounced. status=failed is deliberately excluded — a
// recipient whose every delivery attempt failed (queue.MaxAttempts
// exhausted) must remain eligible on a later day or campaign, not be
// permanently blacklisted by one dead attempt.
var dedupStatuses = []domain.SentStatus{
	domain.SentSent, domain.SentDelivered, domain.SentOpened, domain.SentClicked, domain.SentBounced,
}

func dedupFilterExpression() (string, map[string]types.AttributeValue) {
	names := make(map[string]types.AttributeValue, len(dedupStatuses))
	placeholders := make([]string, len(dedupStatuses))
	for i, s := range dedupStatuses {
		ph := fmt.Sprintf(":status%d", i)
		placeholders[i] = ph
		names[ph] = &types.AttributeValueMemberS{Value: string(s)}
	}
	expr := "Status IN (" + joinPlaceholders(placeholders) + ")"
	return expr, names
}

func joinPlaceholders(ph []string) string {
	out := ph[0]
	for _, p := range ph[1:] {
		out += ", " + p
	}
	return out
}

// SentRecipients returns the dedup set for a campaign (Query on PK) or,
// under the global warm-up scope, scans the whole table filtered to SENT#
// sort keys. Both paths filter to dedupStatuses (§8 property 3): a
// status=failed row never counts as "already sent". The scan path is an
// accepted cost of the single-table design: production deployments with a
// high campaign count should back the global scope with a dedicated GSI
// on Email instead (§4.2).
func (m *MessageStore) SentRecipients(ctx context.Context, campaignID string, global bool) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	statusExpr, statusValues := dedupFilterExpression()

	if !global {
		values := map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sentPK(campaignID)},
			":prefix": &types.AttributeValueMemberS{Value: "SENT#"},
		}
		for k, v := range statusValues {
			values[k] = v
		}
		paginator := dynamodb.NewQueryPaginator(m.client, &dynamodb.QueryInput{
			TableName:                 aws.String(m.tableName),
			KeyConditionExpression:    aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			FilterExpression:          aws.String(statusExpr),
			ExpressionAttributeValues: values,
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("dynamo: query sent recipients: %w", err)
			}
			for _, it := range page.Items {
				if email, ok := it["Email"].(*types.AttributeValueMemberS); ok {
					out[email.Value] = struct{}{}
				}
			}
		}
		return out, nil
	}

	values := map[string]types.AttributeValue{
		":prefix": &types.AttributeValueMemberS{Value: "SENT#"},
	}
	for k, v := range statusValues {
		values[k] = v
	}
	paginator := dynamodb.NewScanPaginator(m.client, &dynamodb.ScanInput{
		TableName:                 aws.String(m.tableName),
		FilterExpression:          aws.String("begins_with(SK, :prefix) AND " + statusExpr),
		ExpressionAttributeValues: values,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamo: scan sent recipients: %w", err)
		}
		for _, it := range page.Items {
			if email, ok := it["Email"].(*types.AttributeValueMemberS); ok {
				out[email.Value] = struct{}{}
			}
		}
	}
	return out, nil
}

// ListByCampaignDay returns every SentEmail for a campaign on a given plan
// day. The table layout keys SK by email, not day, so this queries the
// whole campaign partition and filters client-side after decode — an
// accepted cost for a per-day analytics read, mirrored from the
// SentRecipients global-scope tradeoff above.
func (m *MessageStore) ListByCampaignDay(ctx context.Context, campaignID string, day int) ([]domain.SentEmail, error) {
	var out []domain.SentEmail
	paginator := dynamodb.NewQueryPaginator(m.client, &dynamodb.QueryInput{
		TableName:              aws.String(m.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sentPK(campaignID)},
			":prefix": &types.AttributeValueMemberS{Value: "SENT#"},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamo: query campaign day: %w", err)
		}
		for _, raw := range page.Items {
			s, err := decodeSentEmail(raw)
			if err != nil {
				continue
			}
			if s.Metadata.Day == day {
				out = append(out, *s)
			}
		}
	}
	return out, nil
}

func (m *MessageStore) DeleteByCampaign(ctx context.Context, campaignID string) error {
	paginator := dynamodb.NewQueryPaginator(m.client, &dynamodb.QueryInput{
		TableName:              aws.String(m.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: sentPK(campaignID)},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("dynamo: query for delete: %w", err)
		}
		for _, it := range page.Items {
			pk, _ := it["PK"].(*types.AttributeValueMemberS)
			sk, _ := it["SK"].(*types.AttributeValueMemberS)
			if pk == nil || sk == nil {
				continue
			}
			if _, err := m.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(m.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: pk.Value},
					"SK": &types.AttributeValueMemberS{Value: sk.Value},
				},
			}); err != nil {
				return fmt.Errorf("dynamo: delete sent email: %w", err)
			}
		}
	}
	return nil
}

func encodeSentEmail(s *domain.SentEmail) (*item, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("dynamo: marshal sent email data: %w", err)
	}
	it := &item{
		PK:     sentPK(s.Campaign),
		SK:     sentSK(s.Recipient.Email, s.Metadata.Day),
		Email:  s.Recipient.Email,
		Status: string(s.Status),
		Data:   string(data),
	}
	if s.MessageID != "" {
		it.GSI1PK = fmt.Sprintf("MSG#%s", s.MessageID)
		it.GSI1SK = it.PK
	}
	return it, nil
}

func decodeSentEmail(raw map[string]types.AttributeValue) (*domain.SentEmail, error) {
	var it item
	if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
		return nil, fmt.Errorf("dynamo: unmarshal item: %w", err)
	}
	var s domain.SentEmail
	if err := json.Unmarshal([]byte(it.Data), &s); err != nil {
		return nil, fmt.Errorf("dynamo: unmarshal sent email data: %w", err)
	}
	return &s, nil
}

// eventPK/eventSK back the CampaignEvent audit log on the same table.
func eventPK(campaignID string) string {
	return fmt.Sprintf("CAMPAIGN#%s#EVENTS", campaignID)
}

func eventSK(at time.Time, id string) string {
	return fmt.Sprintf("%s#%s", at.UTC().Format(time.RFC3339Nano), id)
}

// EventLog is the DynamoDB-backed append-only CampaignEvent audit log
// (§3: "never mutated or deleted").
type EventLog struct {
	client    *dynamodb.Client
	tableName string
}

// NewEventLog builds an EventLog over an existing DynamoDB client.
func NewEventLog(client *dynamodb.Client, tableName string) *EventLog {
	return &EventLog{client: client, tableName: tableName}
}

// Append records a CampaignEvent. It never overwrites: the SK embeds a
// nanosecond timestamp plus the event's own id, so collisions cannot
// occur in practice.
func (l *EventLog) Append(ctx context.Context, e *domain.CampaignEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("dynamo: marshal campaign event: %w", err)
	}
	av, err := attributevalue.MarshalMap(item{
		PK:   eventPK(e.Campaign),
		SK:   eventSK(e.Timestamp, e.ID),
		Data: string(data),
	})
	if err != nil {
		return fmt.Errorf("dynamo: marshal campaign event item: %w", err)
	}
	if _, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("dynamo: append campaign event: %w", err)
	}
	return nil
}

// ListByCampaign returns every recorded event for a campaign in
// chronological order.
func (l *EventLog) ListByCampaign(ctx context.Context, campaignID string) ([]domain.CampaignEvent, error) {
	var out []domain.CampaignEvent
	paginator := dynamodb.NewQueryPaginator(l.client, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: eventPK(campaignID)},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamo: query campaign events: %w", err)
		}
		for _, raw := range page.Items {
			var it item
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				continue
			}
			var e domain.CampaignEvent
			if err := json.Unmarshal([]byte(it.Data), &e); err != nil {
				continue
			}
			out = append(out, e)
		}
	}
	return out, nil
}
