package ea

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/backfield/gridiron/internal/blaze"
)

// ProcessConfig pins the Process endpoint and its identity headers.
type ProcessConfig struct {
	BaseURL     string // defaults to the production WAL host
	BlazeID     string // X-BLAZE-ID, per version strategy
	AppKey      string // X-Application-Key; empty takes the companion key
	UserAgent   string // empty takes the mobile UA
	Cookie      string // optional ak_bmsc edge cookie from the capture context
	Timeout     time.Duration
	InsecureTLS bool
}

// ProcessClient posts command envelopes to /wal/mca/Process/{ticket}.
type ProcessClient struct {
	cfg  ProcessConfig
	http *http.Client
	log  *zap.Logger
}

func NewProcessClient(cfg ProcessConfig, log *zap.Logger) *ProcessClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultWALBaseURL
	}
	if cfg.AppKey == "" {
		cfg.AppKey = applicationKey
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = MobileUserAgent
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProcessClient{
		cfg:  cfg,
		http: newHTTPClient(cfg.Timeout, cfg.InsecureTLS),
		log:  log.With(zap.String("component", "ea.process")),
	}
}

// Invoke sends the envelope under the given session ticket and returns the
// raw body. HTTP 200s carrying the Blaze error envelope come back as
// *blaze.APIError.
func (c *ProcessClient) Invoke(ctx context.Context, ticket string, env blaze.ProcessEnvelope) ([]byte, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/wal/mca/Process/" + ticket
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Charset", "UTF-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("X-BLAZE-ID", c.cfg.BlazeID)
	req.Header.Set("X-Application-Key", c.cfg.AppKey)
	req.Header.Set("X-BLAZE-VOID-RESP", "XML")
	if c.cfg.Cookie != "" {
		req.Header.Set("Cookie", c.cfg.Cookie)
	}

	body, err := doRead(c.http, req)
	if err != nil {
		return nil, err
	}
	if err := blaze.CheckResponse(body); err != nil {
		var apiErr *blaze.APIError
		if errors.As(err, &apiErr) {
			c.log.Warn("process_api_error",
				zap.Int64("code", apiErr.Code),
				zap.String("name", apiErr.Name),
				zap.Bool("auth_stale", apiErr.AuthStale()))
		}
		return nil, err
	}
	return body, nil
}
