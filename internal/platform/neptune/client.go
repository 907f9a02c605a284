package neptune

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/yungbote/lineagesync/internal/platform/httpx"
	"github.com/yungbote/lineagesync/internal/platform/logger"
)

const (
	conflictMarker    = "ConcurrentModificationException"
	maxErrorBodyBytes = 2048
)

// Client executes Gremlin queries against a Neptune HTTPS endpoint. Every
// request is SigV4-signed for the neptune-db service and sent only over
// HTTPS; the scheme is validated at construction and re-checked before each
// send. Inline retries are reserved for the store's concurrent-modification
// conflicts; every other failure is returned to the caller untouched.
type Client struct {
	log      *logger.Logger
	cfg      Config
	endpoint string
	http     *http.Client
	signer   *v4.Signer
	creds    aws.CredentialsProvider
	retries  atomic.Int64
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neptune: logger required")
	}
	cfg.applyDefaults()

	endpoint, err := ValidateEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, fmt.Errorf("neptune: region is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("neptune: load aws credentials: %w", err)
	}

	c := &Client{
		log:      log.With("client", "NeptuneClient"),
		cfg:      cfg,
		endpoint: endpoint,
		http:     &http.Client{Timeout: cfg.Timeout},
		signer:   v4.NewSigner(),
		creds:    awsCfg.Credentials,
	}
	c.log.Info("Neptune client ready",
		"endpoint", endpoint,
		"region", cfg.Region,
		"timeout", cfg.Timeout.String(),
	)
	return c, nil
}

// Endpoint returns the canonical HTTPS endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// RetryCount reports how many inline conflict retries the client has issued
// over its lifetime.
func (c *Client) RetryCount() int64 {
	return c.retries.Load()
}

// UpsertVertex idempotently creates a vertex keyed by (label, keyProp, key);
// a vertex that already exists is left untouched.
func (c *Client) UpsertVertex(ctx context.Context, label, keyProp, key string, props []Property) error {
	query := UpsertVertexQuery(label, keyProp, key, props)
	_, err := c.Execute(ctx, "upsert_vertex", query, c.cfg.VertexMaxRetries)
	return err
}

// UpsertEdge idempotently creates an edge between two existing vertices.
// Edges race harder than vertices under concurrent writers, so the edge path
// carries its own, higher retry limit.
func (c *Client) UpsertEdge(ctx context.Context, label, vertexLabel, keyProp, fromKey, toKey string, props []Property) error {
	query := UpsertEdgeQuery(label, vertexLabel, keyProp, fromKey, toKey, props)
	_, err := c.Execute(ctx, "upsert_edge", query, c.cfg.EdgeMaxRetries)
	return err
}

// Execute runs one Gremlin query with conflict-targeted retry. maxAttempts
// bounds total attempts; backoff is base*2^attempt plus secure jitter.
func (c *Client) Execute(ctx context.Context, op, query string, maxAttempts int) (*Response, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, opErr(op, OperationErrorTimeout, "context done", ctx.Err())
		}

		resp, err := c.doOnce(ctx, op, query)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsConflict(err) {
			return nil, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		delay := httpx.BackoffDelay(c.cfg.BackoffBase, attempt, c.cfg.MaxJitter)
		c.retries.Add(1)
		c.log.Debug("Conflict detected, retrying",
			"op", op,
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"delay", delay.String(),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, opErr(op, OperationErrorTimeout, "context done during backoff", ctx.Err())
		}
	}

	c.log.Warn("Conflict retries exhausted", "op", op, "max_attempts", maxAttempts)
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, op, query string) (*Response, error) {
	// Fail closed on any non-HTTPS target, even if the endpoint string was
	// mutated after construction.
	if !strings.HasPrefix(c.endpoint, "https://") {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("refusing non-https endpoint %q", c.endpoint), nil)
	}

	body, err := json.Marshal(map[string]string{"gremlin": query})
	if err != nil {
		return nil, opErr(op, OperationErrorEncodeFailed, "encode gremlin payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, opErr(op, OperationErrorValidation, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.sign(ctx, req, body); err != nil {
		return nil, opErr(op, OperationErrorTransportFailed, "sign request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyCallError(op, err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		return nil, opErr(op, OperationErrorDecodeFailed, "read response", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if bytes.Contains(raw, []byte(conflictMarker)) {
			return nil, &OperationError{
				Code:       OperationErrorConflict,
				Operation:  op,
				StatusCode: resp.StatusCode,
				Message:    "concurrent modification conflict",
			}
		}
		return nil, &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("gremlin status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	decoded, err := decodeResponse(raw)
	if err != nil {
		return nil, opErr(op, OperationErrorDecodeFailed, "decode response", err)
	}
	return decoded, nil
}

func (c *Client) sign(ctx context.Context, req *http.Request, body []byte) error {
	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieve credentials: %w", err)
	}
	sum := sha256.Sum256(body)
	return c.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]),
		signingService, c.cfg.Region, time.Now().UTC())
}

func classifyCallError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, "request timed out", err)
	}
	return opErr(op, OperationErrorTransportFailed, "request failed", err)
}

func truncateBody(raw []byte) string {
	if len(raw) > maxErrorBodyBytes {
		raw = raw[:maxErrorBodyBytes]
	}
	return string(raw)
}
