package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/service/analytics"
)

// analyticsRow is the on-disk shape of one DailyAnalytics bucket. One
// campaign-day spans several rows sharing a PK: one SUMMARY row, 24 HOUR
// rows, and one DOMAIN/SENDER row per bucket seen so far — the same
// PK/SK single-table layout as MessageStore, specialized so every
// counter increment is a native DynamoDB ADD instead of a JSON
// read-modify-write.
type analyticsRow struct {
	PK              string  `dynamodbav:"PK"`
	SK              string  `dynamodbav:"SK"`
	Hour            int     `dynamodbav:"Hour"`
	Domain          string  `dynamodbav:"Domain,omitempty"`
	Sender          string  `dynamodbav:"Sender,omitempty"`
	TotalSent       int     `dynamodbav:"TotalSent"`
	TotalDelivered  int     `dynamodbav:"TotalDelivered"`
	TotalFailed     int     `dynamodbav:"TotalFailed"`
	TotalBounced    int     `dynamodbav:"TotalBounced"`
	TotalOpened     int     `dynamodbav:"TotalOpened"`
	UniqueOpens     int     `dynamodbav:"UniqueOpens"`
	TotalClicked    int     `dynamodbav:"TotalClicked"`
	UniqueClicks    int     `dynamodbav:"UniqueClicks"`
	DeliveryRate    float64 `dynamodbav:"DeliveryRate"`
	BounceRate      float64 `dynamodbav:"BounceRate"`
	OpenRate        float64 `dynamodbav:"OpenRate"`
	ClickRate       float64 `dynamodbav:"ClickRate"`
	ClickToOpenRate float64 `dynamodbav:"ClickToOpenRate"`
}

func analyticsPK(campaignID string, day int) string {
	return fmt.Sprintf("CAMPAIGN#%s#ANALYTICS#%d", campaignID, day)
}

const summarySK = "SUMMARY"

func hourSK(hour int) string    { return fmt.Sprintf("HOUR#%02d", hour) }
func domainSK(d string) string  { return fmt.Sprintf("DOMAIN#%s", d) }
func senderSK(s string) string  { return fmt.Sprintf("SENDER#%s", s) }

// AnalyticsStore is the DynamoDB-backed analytics.Repository.
type AnalyticsStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewAnalyticsStore builds an AnalyticsStore over an existing DynamoDB client.
func NewAnalyticsStore(client *dynamodb.Client, tableName string) *AnalyticsStore {
	return &AnalyticsStore{client: client, tableName: tableName}
}

func (a *AnalyticsStore) putIfAbsent(ctx context.Context, row analyticsRow) error {
	av, err := attributevalue.MarshalMap(row)
	if err != nil {
		return fmt.Errorf("dynamo: marshal analytics row: %w", err)
	}
	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(a.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var cce *types.ConditionalCheckFailedException
		if errors.As(err, &cce) {
			return nil
		}
		return fmt.Errorf("dynamo: put analytics row: %w", err)
	}
	return nil
}

// EnsureExists pre-fills the SUMMARY row and the 24-hour skeleton for a
// campaign-day if they don't already exist (§4.10).
func (a *AnalyticsStore) EnsureExists(ctx context.Context, campaignID string, day int) error {
	pk := analyticsPK(campaignID, day)
	if err := a.putIfAbsent(ctx, analyticsRow{PK: pk, SK: summarySK}); err != nil {
		return err
	}
	for h := 0; h < 24; h++ {
		if err := a.putIfAbsent(ctx, analyticsRow{PK: pk, SK: hourSK(h), Hour: h}); err != nil {
			return err
		}
	}
	return nil
}

// addExpr composes an "ADD attr1 :v1, attr2 :v2, ..." update expression
// plus attribute value map for the non-zero fields of delta.
func addExpr(delta analytics.SummaryDelta) (string, map[string]types.AttributeValue) {
	type field struct {
		name string
		val  int
	}
	fields := []field{
		{"TotalSent", delta.Sent},
		{"TotalDelivered", delta.Delivered},
		{"TotalFailed", delta.Failed},
		{"TotalBounced", delta.Bounced},
		{"TotalOpened", delta.Opened},
		{"UniqueOpens", delta.UniqueOpens},
		{"TotalClicked", delta.Clicked},
		{"UniqueClicks", delta.UniqueClicks},
	}

	var clauses []string
	values := make(map[string]types.AttributeValue)
	for _, f := range fields {
		if f.val == 0 {
			continue
		}
		placeholder := ":" + strings.ToLower(f.name)
		clauses = append(clauses, fmt.Sprintf("%s %s", f.name, placeholder))
		values[placeholder] = &types.AttributeValueMemberN{Value: strconv.Itoa(f.val)}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "ADD " + strings.Join(clauses, ", "), values
}

func (a *AnalyticsStore) increment(ctx context.Context, pk, sk string, delta analytics.SummaryDelta, setExpr string, names map[string]string, extraValues map[string]types.AttributeValue) error {
	expr, values := addExpr(delta)
	if expr == "" && setExpr == "" {
		return nil
	}
	if setExpr != "" {
		if expr != "" {
			expr = setExpr + " " + expr
		} else {
			expr = setExpr
		}
	}
	if values == nil {
		values = make(map[string]types.AttributeValue)
	}
	for k, v := range extraValues {
		values[k] = v
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(a.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeValues: values,
	}
	if len(names) > 0 {
		input.ExpressionAttributeNames = names
	}

	if _, err := a.client.UpdateItem(ctx, input); err != nil {
		return fmt.Errorf("dynamo: increment analytics row: %w", err)
	}
	return nil
}

func (a *AnalyticsStore) IncrementSummary(ctx context.Context, campaignID string, day int, delta analytics.SummaryDelta) error {
	return a.increment(ctx, analyticsPK(campaignID, day), summarySK, delta, "", nil, nil)
}

func (a *AnalyticsStore) IncrementHourly(ctx context.Context, campaignID string, day, hour int, delta analytics.SummaryDelta) error {
	pk := analyticsPK(campaignID, day)
	sk := hourSK(hour)
	names := map[string]string{"#hour": "Hour"}
	values := map[string]types.AttributeValue{":hourval": &types.AttributeValueMemberN{Value: strconv.Itoa(hour)}}
	return a.increment(ctx, pk, sk, delta, "SET #hour = :hourval", names, values)
}

// IncrementDomain bumps domainBreakdown[domain].*, pushing a new bucket
// (by virtue of DynamoDB UpdateItem upserting the item) on first use.
func (a *AnalyticsStore) IncrementDomain(ctx context.Context, campaignID string, day int, recipientDomain string, delta analytics.SummaryDelta) error {
	pk := analyticsPK(campaignID, day)
	sk := domainSK(recipientDomain)
	names := map[string]string{"#domain": "Domain"}
	values := map[string]types.AttributeValue{":domainval": &types.AttributeValueMemberS{Value: recipientDomain}}
	return a.increment(ctx, pk, sk, delta, "SET #domain = :domainval", names, values)
}

// IncrementSender is the Sender symmetric of IncrementDomain.
func (a *AnalyticsStore) IncrementSender(ctx context.Context, campaignID string, day int, senderEmail string, delta analytics.SummaryDelta) error {
	pk := analyticsPK(campaignID, day)
	sk := senderSK(senderEmail)
	names := map[string]string{"#sender": "Sender"}
	values := map[string]types.AttributeValue{":senderval": &types.AttributeValueMemberS{Value: senderEmail}}
	return a.increment(ctx, pk, sk, delta, "SET #sender = :senderval", names, values)
}

func (a *AnalyticsStore) PutRates(ctx context.Context, campaignID string, day int, rates domain.AnalyticsRates) error {
	_, err := a.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(a.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: analyticsPK(campaignID, day)},
			"SK": &types.AttributeValueMemberS{Value: summarySK},
		},
		UpdateExpression: aws.String("SET DeliveryRate = :dr, BounceRate = :br, OpenRate = :or, ClickRate = :cr, ClickToOpenRate = :ctor"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":dr":   &types.AttributeValueMemberN{Value: strconv.FormatFloat(rates.DeliveryRate, 'f', -1, 64)},
			":br":   &types.AttributeValueMemberN{Value: strconv.FormatFloat(rates.BounceRate, 'f', -1, 64)},
			":or":   &types.AttributeValueMemberN{Value: strconv.FormatFloat(rates.OpenRate, 'f', -1, 64)},
			":cr":   &types.AttributeValueMemberN{Value: strconv.FormatFloat(rates.ClickRate, 'f', -1, 64)},
			":ctor": &types.AttributeValueMemberN{Value: strconv.FormatFloat(rates.ClickToOpenRate, 'f', -1, 64)},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamo: put analytics rates: %w", err)
	}
	return nil
}

func (a *AnalyticsStore) Get(ctx context.Context, campaignID string, day int) (*domain.DailyAnalytics, error) {
	out, err := a.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(a.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: analyticsPK(campaignID, day)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dynamo: query analytics: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, analytics.ErrNotFound
	}

	da := domain.NewDailyAnalytics(campaignID, day)
	for _, raw := range out.Items {
		var row analyticsRow
		if err := attributevalue.UnmarshalMap(raw, &row); err != nil {
			return nil, fmt.Errorf("dynamo: unmarshal analytics row: %w", err)
		}
		bucket := rowToSummary(row)

		switch {
		case row.SK == summarySK:
			da.Summary = bucket
			da.Rates = domain.AnalyticsRates{
				DeliveryRate:    row.DeliveryRate,
				BounceRate:      row.BounceRate,
				OpenRate:        row.OpenRate,
				ClickRate:       row.ClickRate,
				ClickToOpenRate: row.ClickToOpenRate,
			}
		case strings.HasPrefix(row.SK, "HOUR#"):
			if row.Hour >= 0 && row.Hour < 24 {
				da.HourlyBreakdown[row.Hour] = domain.HourlyBucket{Hour: row.Hour, AnalyticsSummary: bucket}
			}
		case strings.HasPrefix(row.SK, "DOMAIN#"):
			da.DomainBreakdown = append(da.DomainBreakdown, domain.DomainBucket{Domain: row.Domain, AnalyticsSummary: bucket})
		case strings.HasPrefix(row.SK, "SENDER#"):
			da.SenderBreakdown = append(da.SenderBreakdown, domain.SenderBucket{Sender: row.Sender, AnalyticsSummary: bucket})
		}
	}
	return da, nil
}

func rowToSummary(row analyticsRow) domain.AnalyticsSummary {
	return domain.AnalyticsSummary{
		TotalSent:      row.TotalSent,
		TotalDelivered: row.TotalDelivered,
		TotalFailed:    row.TotalFailed,
		TotalBounced:   row.TotalBounced,
		TotalOpened:    row.TotalOpened,
		UniqueOpens:    row.UniqueOpens,
		TotalClicked:   row.TotalClicked,
		UniqueClicks:   row.UniqueClicks,
	}
}
