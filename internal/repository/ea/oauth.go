package ea

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/backfield/gridiron/internal/auth"
)

// OAuthConfig tunes the accounts client. Zero-value URLs take the production
// endpoints.
type OAuthConfig struct {
	TokenURL     string
	TokenInfoURL string
	IdentityURL  string
	Timeout      time.Duration
}

func (c *OAuthConfig) withDefaults() {
	if c.TokenURL == "" {
		c.TokenURL = "https://accounts.ea.com/connect/token"
	}
	if c.TokenInfoURL == "" {
		c.TokenInfoURL = "https://accounts.ea.com/connect/tokeninfo"
	}
	if c.IdentityURL == "" {
		c.IdentityURL = "https://gateway.ea.com/proxy/identity"
	}
}

// OAuthClient talks to accounts.ea.com and the identity gateway.
type OAuthClient struct {
	cfg  OAuthConfig
	http *http.Client
	log  *zap.Logger
}

var _ auth.TokenEndpoint = (*OAuthClient)(nil)

func NewOAuthClient(cfg OAuthConfig, log *zap.Logger) *OAuthClient {
	cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &OAuthClient{
		cfg:  cfg,
		http: newHTTPClient(cfg.Timeout, false),
		log:  log.With(zap.String("component", "ea.oauth")),
	}
}

// Refresh exchanges a refresh token for a fresh grant.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*auth.TokenGrant, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {ClientID},
		"client_secret": {ClientSecret},
	}
	return c.tokenGrant(ctx, form)
}

// ExchangeOptions carries the optional parts of the authorization-code grant.
type ExchangeOptions struct {
	RedirectURI  string
	CodeVerifier string
}

// ExchangeCode trades a browser-flow authorization code for the first token
// pair.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string, opts ExchangeOptions) (*auth.TokenGrant, error) {
	redirect := opts.RedirectURI
	if redirect == "" {
		redirect = RedirectURL
	}
	form := url.Values{
		"grant_type":            {"authorization_code"},
		"code":                  {code},
		"client_id":             {ClientID},
		"client_secret":         {ClientSecret},
		"redirect_uri":          {redirect},
		"authentication_source": {AuthSource},
		"release_type":          {"prod"},
		"token_format":          {"JWS"},
	}
	if opts.CodeVerifier != "" {
		form.Set("code_verifier", opts.CodeVerifier)
	}
	return c.tokenGrant(ctx, form)
}

func (c *OAuthClient) tokenGrant(ctx context.Context, form url.Values) (*auth.TokenGrant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", MobileUserAgent)

	body, err := doRead(c.http, req)
	if err != nil {
		return nil, err
	}

	var grant struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &grant); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if grant.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token: %s", truncate(body, errBodySnippet))
	}
	c.log.Debug("grant_issued", zap.Int("expires_in", grant.ExpiresIn))
	return &auth.TokenGrant{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresIn:    grant.ExpiresIn,
	}, nil
}

// TokenInfo is the introspection response for an access token.
type TokenInfo struct {
	ClientID  string `json:"client_id"`
	PidID     string `json:"pid_id"`
	PidType   string `json:"pid_type"`
	UserID    string `json:"user_id"`
	Scope     string `json:"scope"`
	ExpiresIn int    `json:"expires_in"`
}

// Introspect resolves the pid behind an access token.
func (c *OAuthClient) Introspect(ctx context.Context, accessToken string) (*TokenInfo, error) {
	u := c.cfg.TokenInfoURL + "?" + url.Values{"access_token": {accessToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Charset", "UTF-8")
	req.Header.Set("X-Include-Deviceid", "true")
	req.Header.Set("User-Agent", MobileUserAgent)
	req.Header.Set("Accept-Encoding", "gzip")

	body, err := doRead(c.http, req)
	if err != nil {
		return nil, err
	}
	var info TokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode tokeninfo: %w", err)
	}
	if info.PidID == "" {
		return nil, fmt.Errorf("tokeninfo missing pid_id: %s", truncate(body, errBodySnippet))
	}
	return &info, nil
}

// Persona is one identity attached to an EA account.
type Persona struct {
	PersonaID         int64  `json:"personaId"`
	DisplayName       string `json:"displayName"`
	NamespaceName     string `json:"namespaceName"`
	LastAuthenticated string `json:"lastAuthenticated"`
}

// Personas lists the account's active personas.
func (c *OAuthClient) Personas(ctx context.Context, pid, accessToken string) ([]Persona, error) {
	u := fmt.Sprintf("%s/pids/%s/personas?%s",
		strings.TrimRight(c.cfg.IdentityURL, "/"),
		url.PathEscape(pid),
		url.Values{"status": {"ACTIVE"}, "access_token": {accessToken}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Charset", "UTF-8")
	req.Header.Set("User-Agent", MobileUserAgent)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("X-Expand-Results", "true")

	body, err := doRead(c.http, req)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Personas struct {
			Persona []Persona `json:"persona"`
		} `json:"personas"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode personas: %w", err)
	}
	return payload.Personas.Persona, nil
}

// Platforms authenticate against different persona namespaces; consoles do
// not use the EA account namespace.
var namespaceForPlatform = map[string]string{
	"xbsx":   "xbox",
	"xone":   "xbox",
	"ps5":    "ps3",
	"ps4":    "ps3",
	"pc":     "cem_ea_id",
	"steam":  "cem_ea_id",
	"origin": "cem_ea_id",
}

// SelectPersona picks the persona to play as: the platform's namespace when
// present, then the EA account namespace, then whatever authenticated last.
// The reason string explains the choice for logs.
func SelectPersona(personas []Persona, platform string) (Persona, string, error) {
	if len(personas) == 0 {
		return Persona{}, "", fmt.Errorf("no personas available")
	}

	expected := namespaceForPlatform[strings.ToLower(platform)]
	if expected != "" {
		if p, ok := latestIn(personas, expected); ok {
			return p, fmt.Sprintf("matched expected namespace %q", expected), nil
		}
	}
	if p, ok := latestIn(personas, "cem_ea_id"); ok {
		return p, "fell back to cem_ea_id account persona", nil
	}
	best := personas[0]
	for _, p := range personas[1:] {
		if p.LastAuthenticated > best.LastAuthenticated {
			best = p
		}
	}
	return best, "fell back to most recently authenticated persona", nil
}

func latestIn(personas []Persona, namespace string) (Persona, bool) {
	var best Persona
	found := false
	for _, p := range personas {
		if p.NamespaceName != namespace {
			continue
		}
		if !found || p.LastAuthenticated > best.LastAuthenticated {
			best = p
			found = true
		}
	}
	return best, found
}

// LoginURL is the browser URL that starts the companion code flow.
func LoginURL() string {
	return "https://accounts.ea.com/connect/auth" +
		"?hide_create=true&release_type=prod&response_type=code" +
		"&redirect_uri=" + url.QueryEscape(RedirectURL) +
		"&client_id=" + ClientID +
		"&machineProfileKey=" + MachineKey +
		"&authentication_source=" + AuthSource
}
