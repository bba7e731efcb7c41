package ea

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRefreshSendsFormAndParsesGrant(t *testing.T) {
	var (
		gotForm url.Values
		gotUA   string
		gotCT   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = r.PostForm
		gotUA = r.Header.Get("User-Agent")
		gotCT = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":14400,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	c := NewOAuthClient(OAuthConfig{TokenURL: srv.URL}, zap.NewNop())
	grant, err := c.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "new-access", grant.AccessToken)
	require.Equal(t, "new-refresh", grant.RefreshToken)
	require.Equal(t, 14400, grant.ExpiresIn)

	require.Equal(t, "refresh_token", gotForm.Get("grant_type"))
	require.Equal(t, "old-refresh", gotForm.Get("refresh_token"))
	require.Equal(t, ClientID, gotForm.Get("client_id"))
	require.Equal(t, ClientSecret, gotForm.Get("client_secret"))
	require.Equal(t, MobileUserAgent, gotUA)
	require.Equal(t, "application/x-www-form-urlencoded", gotCT)
}

func TestRefreshSurfacesUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream sad", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOAuthClient(OAuthConfig{TokenURL: srv.URL}, zap.NewNop())
	_, err := c.Refresh(context.Background(), "r")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
}

func TestRefreshRejectsGrantWithoutAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	c := NewOAuthClient(OAuthConfig{TokenURL: srv.URL}, zap.NewNop())
	_, err := c.Refresh(context.Background(), "r")
	require.Error(t, err)
}

func TestExchangeCodeSendsCompanionIdentity(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = r.PostForm
		w.Write([]byte(`{"access_token":"a","refresh_token":"r","expires_in":3600}`))
	}))
	defer srv.Close()

	c := NewOAuthClient(OAuthConfig{TokenURL: srv.URL}, zap.NewNop())
	_, err := c.ExchangeCode(context.Background(), "the-code", ExchangeOptions{CodeVerifier: "ver"})
	require.NoError(t, err)

	require.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	require.Equal(t, "the-code", gotForm.Get("code"))
	require.Equal(t, RedirectURL, gotForm.Get("redirect_uri"))
	require.Equal(t, AuthSource, gotForm.Get("authentication_source"))
	require.Equal(t, "prod", gotForm.Get("release_type"))
	require.Equal(t, "JWS", gotForm.Get("token_format"))
	require.Equal(t, "ver", gotForm.Get("code_verifier"))
}

func TestIntrospectResolvesPid(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"client_id":"MCA_25_COMP_APP","pid_id":"100200300","pid_type":"NUCLEUS","user_id":"100200300"}`))
	}))
	defer srv.Close()

	c := NewOAuthClient(OAuthConfig{TokenInfoURL: srv.URL}, zap.NewNop())
	info, err := c.Introspect(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, "100200300", info.PidID)
	require.Equal(t, "tok", gotQuery.Get("access_token"))
}

func TestIntrospectRejectsMissingPid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"client_id":"MCA_25_COMP_APP"}`))
	}))
	defer srv.Close()

	c := NewOAuthClient(OAuthConfig{TokenInfoURL: srv.URL}, zap.NewNop())
	_, err := c.Introspect(context.Background(), "tok")
	require.Error(t, err)
}

func TestPersonasParsesNestedList(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"personas":{"persona":[
			{"personaId":111,"displayName":"GamerOne","namespaceName":"xbox","lastAuthenticated":"2025-08-01T10:00:00Z"},
			{"personaId":222,"displayName":"GamerOne","namespaceName":"cem_ea_id","lastAuthenticated":"2025-07-01T10:00:00Z"}
		]}}`))
	}))
	defer srv.Close()

	c := NewOAuthClient(OAuthConfig{IdentityURL: srv.URL}, zap.NewNop())
	personas, err := c.Personas(context.Background(), "100200300", "tok")
	require.NoError(t, err)
	require.Len(t, personas, 2)
	require.Equal(t, int64(111), personas[0].PersonaID)
	require.Equal(t, "/pids/100200300/personas", gotPath)
}

func TestSelectPersonaPrefersPlatformNamespace(t *testing.T) {
	personas := []Persona{
		{PersonaID: 1, NamespaceName: "cem_ea_id", LastAuthenticated: "2025-08-01T10:00:00Z"},
		{PersonaID: 2, NamespaceName: "xbox", LastAuthenticated: "2025-01-01T10:00:00Z"},
		{PersonaID: 3, NamespaceName: "xbox", LastAuthenticated: "2025-06-01T10:00:00Z"},
	}

	p, reason, err := SelectPersona(personas, "xbsx")
	require.NoError(t, err)
	require.Equal(t, int64(3), p.PersonaID, "most recently authenticated in the namespace wins")
	require.Contains(t, reason, "xbox")

	p, _, err = SelectPersona(personas, "pc")
	require.NoError(t, err)
	require.Equal(t, int64(1), p.PersonaID)

	// No namespace hit for the platform, account persona wins.
	p, reason, err = SelectPersona(personas, "ps5")
	require.NoError(t, err)
	require.Equal(t, int64(1), p.PersonaID)
	require.Contains(t, reason, "cem_ea_id")
}

func TestSelectPersonaFallsBackToMostRecent(t *testing.T) {
	personas := []Persona{
		{PersonaID: 1, NamespaceName: "xbox", LastAuthenticated: "2025-01-01T10:00:00Z"},
		{PersonaID: 2, NamespaceName: "ps3", LastAuthenticated: "2025-05-01T10:00:00Z"},
	}
	p, _, err := SelectPersona(personas, "steam")
	require.NoError(t, err)
	require.Equal(t, int64(2), p.PersonaID)

	_, _, err = SelectPersona(nil, "xbsx")
	require.Error(t, err)
}

func TestLoginURLPinsCompanionParameters(t *testing.T) {
	want := "https://accounts.ea.com/connect/auth" +
		"?hide_create=true&release_type=prod&response_type=code" +
		"&redirect_uri=http%3A%2F%2F127.0.0.1%2Fsuccess" +
		"&client_id=MCA_25_COMP_APP" +
		"&machineProfileKey=444d362e8e067fe2" +
		"&authentication_source=317239"
	require.Equal(t, want, LoginURL())
}
