package ea

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/backfield/gridiron/internal/auth"
)

const defaultWALBaseURL = "https://wal2.tools.gos.bio-iad.ea.com"

// WALConfig pins the login target for one game cycle.
type WALConfig struct {
	BaseURL     string // defaults to the production WAL host
	BlazeHeader string // X-BLAZE-ID, e.g. madden-2025-xbsx-gen5
	ProductName string // e.g. madden-2025-xbsx-mca
	Timeout     time.Duration
	InsecureTLS bool
}

// WALClient mints session tickets via the WAL authentication endpoint.
type WALClient struct {
	cfg  WALConfig
	http *http.Client
	log  *zap.Logger
}

var _ auth.LoginEndpoint = (*WALClient)(nil)

func NewWALClient(cfg WALConfig, log *zap.Logger) *WALClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultWALBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WALClient{
		cfg:  cfg,
		http: newHTTPClient(cfg.Timeout, cfg.InsecureTLS),
		log:  log.With(zap.String("component", "ea.wal")),
	}
}

// Login trades an access token for a reusable session ticket.
func (c *WALClient) Login(ctx context.Context, accessToken string) (*auth.SessionTicket, error) {
	payload, err := json.Marshal(map[string]string{
		"accessToken": accessToken,
		"productName": c.cfg.ProductName,
	})
	if err != nil {
		return nil, err
	}

	u := c.cfg.BaseURL + "/wal/authentication/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Charset", "UTF-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-BLAZE-ID", c.cfg.BlazeHeader)
	req.Header.Set("X-BLAZE-VOID-RESP", "XML")
	req.Header.Set("X-Application-Key", applicationKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", MobileUserAgent)

	body, err := doRead(c.http, req)
	if err != nil {
		return nil, err
	}

	var out struct {
		UserLoginInfo *struct {
			SessionKey     string `json:"sessionKey"`
			BlazeID        int64  `json:"blazeId"`
			PersonaDetails struct {
				PersonaID   int64  `json:"personaId"`
				DisplayName string `json:"displayName"`
			} `json:"personaDetails"`
		} `json:"userLoginInfo"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if out.UserLoginInfo == nil || out.UserLoginInfo.SessionKey == "" {
		return nil, fmt.Errorf("login response missing userLoginInfo: %s", truncate(body, errBodySnippet))
	}

	info := out.UserLoginInfo
	c.log.Info("wal_login_ok",
		zap.Int64("blaze_id", info.BlazeID),
		zap.String("display_name", info.PersonaDetails.DisplayName))
	return &auth.SessionTicket{
		Ticket:      info.SessionKey,
		BlazeID:     info.BlazeID,
		PersonaID:   info.PersonaDetails.PersonaID,
		DisplayName: info.PersonaDetails.DisplayName,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
