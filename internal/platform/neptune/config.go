package neptune

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/lineagesync/internal/platform/envutil"
)

const (
	defaultPort        = 8182
	defaultPath        = "/gremlin"
	defaultTimeout     = 30 * time.Second
	defaultVertexTries = 3
	defaultEdgeTries   = 5
	defaultBackoffBase = 500 * time.Millisecond
	defaultMaxJitter   = 500 * time.Millisecond
	signingService     = "neptune-db"
)

type Config struct {
	// Endpoint is either a bare cluster hostname or a full https URL.
	Endpoint string
	Region   string
	Timeout  time.Duration
	// VertexMaxRetries and EdgeMaxRetries bound inline attempts for the
	// conflict error class only.
	VertexMaxRetries int
	EdgeMaxRetries   int
	BackoffBase      time.Duration
	MaxJitter        time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Endpoint:         envutil.Str("NEPTUNE_ENDPOINT", ""),
		Region:           envutil.Str("AWS_REGION", "us-east-1"),
		Timeout:          envutil.Duration("NEPTUNE_TIMEOUT", defaultTimeout),
		VertexMaxRetries: envutil.Int("NEPTUNE_VERTEX_MAX_RETRIES", defaultVertexTries),
		EdgeMaxRetries:   envutil.Int("NEPTUNE_EDGE_MAX_RETRIES", defaultEdgeTries),
		BackoffBase:      envutil.Duration("NEPTUNE_BACKOFF_BASE", defaultBackoffBase),
		MaxJitter:        envutil.Duration("NEPTUNE_BACKOFF_JITTER", defaultMaxJitter),
	}
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.VertexMaxRetries <= 0 {
		c.VertexMaxRetries = defaultVertexTries
	}
	if c.EdgeMaxRetries <= 0 {
		c.EdgeMaxRetries = defaultEdgeTries
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.MaxJitter <= 0 {
		c.MaxJitter = defaultMaxJitter
	}
}

// ValidateEndpoint canonicalizes the endpoint and enforces HTTPS. A bare host
// becomes https://<host>:8182/gremlin; anything already URL-shaped must parse
// as https with a hostname.
func ValidateEndpoint(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("neptune: endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = fmt.Sprintf("https://%s:%d%s", endpoint, defaultPort, defaultPath)
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("neptune: invalid endpoint %q: %w", endpoint, err)
	}
	if parsed.Scheme != "https" {
		return "", fmt.Errorf("neptune: disallowed scheme %q: only https is permitted", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("neptune: endpoint %q has no hostname", endpoint)
	}
	return parsed.String(), nil
}
