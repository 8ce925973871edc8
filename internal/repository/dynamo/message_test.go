package dynamo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/ignite/warmlane/internal/domain"
)

// newTestClient points a dynamodb client at a local httptest server,
// grounded on the mailtransport package's own esp_adapters_test.go-style
// BaseEndpoint override, so these tests never touch the network.
func newTestClient(server *httptest.Server) *dynamodb.Client {
	return dynamodb.New(dynamodb.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDTEST", "secret", ""),
		BaseEndpoint: aws.String(server.URL),
	})
}

func TestDedupStatusesExcludeFailed(t *testing.T) {
	for _, s := range dedupStatuses {
		if s == domain.SentFailed {
			t.Fatalf("dedupStatuses must never include status=failed, got %v", dedupStatuses)
		}
	}
	want := map[domain.SentStatus]bool{
		domain.SentSent: true, domain.SentDelivered: true, domain.SentOpened: true,
		domain.SentClicked: true, domain.SentBounced: true,
	}
	if len(dedupStatuses) != len(want) {
		t.Fatalf("expected %d dedup statuses, got %d: %v", len(want), len(dedupStatuses), dedupStatuses)
	}
	for _, s := range dedupStatuses {
		if !want[s] {
			t.Errorf("unexpected dedup status %v", s)
		}
	}
}

func TestSentRecipientsQueryFiltersOutFailedStatus(t *testing.T) {
	var capturedBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		capturedBody = string(body)
		w.Header().Set("Content-Type", "application/x-amz-json-1.0")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Items": []map[string]any{
				{"Email": map[string]string{"S": "delivered@example.com"}},
			},
			"Count": 1,
		})
	}))
	defer server.Close()

	store := New(newTestClient(server), "warmlane-messages")
	out, err := store.SentRecipients(context.Background(), "camp-1", false)
	if err != nil {
		t.Fatalf("SentRecipients: %v", err)
	}
	if _, ok := out["delivered@example.com"]; !ok {
		t.Errorf("expected delivered@example.com in dedup set, got %v", out)
	}

	if !strings.Contains(capturedBody, "FilterExpression") || !strings.Contains(capturedBody, "Status IN") {
		t.Fatalf("expected request to carry a Status IN filter, got body: %s", capturedBody)
	}
	if strings.Contains(capturedBody, `"failed"`) {
		t.Errorf("expected the filter's status values to exclude \"failed\", got body: %s", capturedBody)
	}
	for _, want := range []string{"sent", "delivered", "opened", "clicked", "bounced"} {
		if !strings.Contains(capturedBody, `"`+want+`"`) {
			t.Errorf("expected filter values to include %q, got body: %s", want, capturedBody)
		}
	}
}

func TestSentRecipientsGlobalScanAlsoFiltersFailed(t *testing.T) {
	var capturedBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		capturedBody = string(body)
		w.Header().Set("Content-Type", "application/x-amz-json-1.0")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"Items": []map[string]any{}, "Count": 0})
	}))
	defer server.Close()

	store := New(newTestClient(server), "warmlane-messages")
	if _, err := store.SentRecipients(context.Background(), "", true); err != nil {
		t.Fatalf("SentRecipients: %v", err)
	}

	if !strings.Contains(capturedBody, "begins_with(SK, :prefix)") || !strings.Contains(capturedBody, "Status IN") {
		t.Fatalf("expected the global scan to combine the SENT# prefix filter with the status filter, got body: %s", capturedBody)
	}
	if strings.Contains(capturedBody, `"failed"`) {
		t.Errorf("expected the global scan's filter values to exclude \"failed\", got body: %s", capturedBody)
	}
}
