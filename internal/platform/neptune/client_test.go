package neptune

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/yungbote/lineagesync/internal/platform/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return log
}

func newTestClient(t *testing.T, cfg Config, roundTrip func(*http.Request) (*http.Response, error)) *Client {
	t.Helper()
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	cfg.applyDefaults()
	return &Client{
		log:      newTestLogger(t),
		cfg:      cfg,
		endpoint: "https://neptune.test:8182/gremlin",
		http:     &http.Client{Transport: roundTripFunc(roundTrip)},
		signer:   v4.NewSigner(),
		creds: aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}, nil
		}),
	}
}

func gremlinResponse(t *testing.T, data any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"requestId": "req-test",
		"status":    map[string]any{"message": "", "code": 200},
		"result":    map[string]any{"data": data},
	})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

func errorResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func fastRetryConfig() Config {
	return Config{
		Endpoint:    "neptune.test",
		BackoffBase: time.Millisecond,
		MaxJitter:   time.Millisecond,
	}
}

func TestExecuteSignsAndSendsQuery(t *testing.T) {
	var captured *http.Request
	var payload map[string]string
	c := newTestClient(t, fastRetryConfig(), func(r *http.Request) (*http.Response, error) {
		captured = r
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return gremlinResponse(t, []any{map[string]any{"@type": "g:Long", "@value": 1}}), nil
	})

	resp, err := c.Execute(context.Background(), "count", "g.V().count()", 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if captured.Method != http.MethodPost {
		t.Fatalf("method: want=%s got=%s", http.MethodPost, captured.Method)
	}
	if payload["gremlin"] != "g.V().count()" {
		t.Fatalf("gremlin payload: got=%q", payload["gremlin"])
	}
	auth := captured.Header.Get("Authorization")
	if !strings.Contains(auth, "AWS4-HMAC-SHA256") {
		t.Fatalf("authorization header not signed: %q", auth)
	}
	if !strings.Contains(auth, "/neptune-db/") {
		t.Fatalf("authorization not scoped to neptune-db: %q", auth)
	}
	if captured.Header.Get("X-Amz-Date") == "" {
		t.Fatalf("missing X-Amz-Date header")
	}
	if n, ok := resp.FirstInt(); !ok || n != 1 {
		t.Fatalf("FirstInt: want=1 got=%d ok=%t", n, ok)
	}
}

func TestExecuteRetriesConflictsUpToLimit(t *testing.T) {
	attempts := 0
	c := newTestClient(t, fastRetryConfig(), func(r *http.Request) (*http.Response, error) {
		attempts++
		return errorResponse(http.StatusInternalServerError,
			`{"detailedMessage": "ConcurrentModificationException: write conflict"}`), nil
	})

	_, err := c.Execute(context.Background(), "upsert_edge", "g.V()", 5)
	if err == nil {
		t.Fatalf("Execute: expected error after exhausted retries")
	}
	if !IsConflict(err) {
		t.Fatalf("error class: want conflict got %v", err)
	}
	if attempts != 5 {
		t.Fatalf("attempts: want=5 got=%d", attempts)
	}
	if c.RetryCount() != 4 {
		t.Fatalf("retry count: want=4 got=%d", c.RetryCount())
	}
}

func TestExecuteRecoversAfterConflict(t *testing.T) {
	attempts := 0
	c := newTestClient(t, fastRetryConfig(), func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts == 1 {
			return errorResponse(http.StatusConflict,
				`{"detailedMessage": "ConcurrentModificationException"}`), nil
		}
		return gremlinResponse(t, []any{}), nil
	})

	if _, err := c.Execute(context.Background(), "upsert_vertex", "g.V()", 3); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts: want=2 got=%d", attempts)
	}
	if c.RetryCount() != 1 {
		t.Fatalf("retry count: want=1 got=%d", c.RetryCount())
	}
}

func TestExecuteDoesNotRetryNonConflictFailures(t *testing.T) {
	attempts := 0
	c := newTestClient(t, fastRetryConfig(), func(r *http.Request) (*http.Response, error) {
		attempts++
		return errorResponse(http.StatusBadRequest, `{"detailedMessage": "malformed query"}`), nil
	})

	_, err := c.Execute(context.Background(), "upsert_vertex", "g.V()", 3)
	if err == nil {
		t.Fatalf("Execute: expected error")
	}
	if IsConflict(err) {
		t.Fatalf("error class: bad request must not classify as conflict")
	}
	var oe *OperationError
	if !errors.As(err, &oe) || oe.Code != OperationErrorQueryFailed {
		t.Fatalf("error code: want=%s got=%v", OperationErrorQueryFailed, err)
	}
	if oe.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code: want=%d got=%d", http.StatusBadRequest, oe.StatusCode)
	}
	if attempts != 1 {
		t.Fatalf("attempts: want=1 got=%d", attempts)
	}
}

func TestExecuteClassifiesTransportFailure(t *testing.T) {
	c := newTestClient(t, fastRetryConfig(), func(r *http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	})

	_, err := c.Execute(context.Background(), "upsert_vertex", "g.V()", 3)
	if err == nil {
		t.Fatalf("Execute: expected error")
	}
	if !IsTransient(err) {
		t.Fatalf("transport failure must classify as transient: %v", err)
	}
}

func TestExecuteRefusesNonHTTPSEndpoint(t *testing.T) {
	c := newTestClient(t, fastRetryConfig(), func(r *http.Request) (*http.Response, error) {
		t.Fatalf("request must not be sent to a non-https endpoint")
		return nil, nil
	})
	c.endpoint = "http://neptune.test:8182/gremlin"

	_, err := c.Execute(context.Background(), "upsert_vertex", "g.V()", 1)
	if err == nil {
		t.Fatalf("Execute: expected validation error")
	}
	var oe *OperationError
	if !errors.As(err, &oe) || oe.Code != OperationErrorValidation {
		t.Fatalf("error code: want=%s got=%v", OperationErrorValidation, err)
	}
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(t, fastRetryConfig(), func(r *http.Request) (*http.Response, error) {
		t.Fatalf("request must not be sent after cancellation")
		return nil, nil
	})

	_, err := c.Execute(ctx, "upsert_vertex", "g.V()", 3)
	if err == nil {
		t.Fatalf("Execute: expected error")
	}
	var oe *OperationError
	if !errors.As(err, &oe) || oe.Code != OperationErrorTimeout {
		t.Fatalf("error code: want=%s got=%v", OperationErrorTimeout, err)
	}
}

func TestUpsertVertexSendsUpsertQuery(t *testing.T) {
	var payload map[string]string
	c := newTestClient(t, fastRetryConfig(), func(r *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return gremlinResponse(t, []any{}), nil
	})

	err := c.UpsertVertex(context.Background(), "lineage_node", "node_name", "orders", []Property{
		{Name: "source_type", Value: "athena"},
	})
	if err != nil {
		t.Fatalf("UpsertVertex: %v", err)
	}
	want := UpsertVertexQuery("lineage_node", "node_name", "orders", []Property{
		{Name: "source_type", Value: "athena"},
	})
	if payload["gremlin"] != want {
		t.Fatalf("gremlin query:\nwant=%s\ngot= %s", want, payload["gremlin"])
	}
}
