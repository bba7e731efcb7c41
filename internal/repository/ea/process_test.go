package ea

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/backfield/gridiron/internal/auth"
	"github.com/backfield/gridiron/internal/blaze"
)

func searchEnvelope(t *testing.T) blaze.ProcessEnvelope {
	t.Helper()
	env, err := blaze.NewEnvelope(blaze.ProcessCall{
		Strategy:  blaze.PickStrategy(26, "ps5"),
		Operation: blaze.OpSearchAuctions,
		Payload:   map[string]any{"filters": []any{}, "itemName": ""},
		DeviceID:  MachineKey,
		Bundle:    auth.AuthBundle{AuthCode: "c", AuthData: "d", AuthType: auth.AuthType},
		ExpiresAt: time.Unix(1756728000, 0).UTC(),
	})
	require.NoError(t, err)
	return env
}

func TestInvokePostsEnvelopeUnderTicket(t *testing.T) {
	var (
		gotPath    string
		gotHeaders http.Header
		gotBody    map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"responseInfo":{"value":{"details":[{"tradeId":1}]}}}`))
	}))
	defer srv.Close()

	c := NewProcessClient(ProcessConfig{
		BaseURL: srv.URL,
		BlazeID: "madden-2026-ps5",
		Cookie:  "ak_bmsc=edge-token",
	}, zap.NewNop())

	body, err := c.Invoke(context.Background(), "tkt-abc123", searchEnvelope(t))
	require.NoError(t, err)
	require.Contains(t, string(body), "tradeId")

	require.Equal(t, "/wal/mca/Process/tkt-abc123", gotPath)
	require.Equal(t, "madden-2026-ps5", gotHeaders.Get("X-BLAZE-ID"))
	require.Equal(t, "MADDEN-MCA", gotHeaders.Get("X-Application-Key"))
	require.Equal(t, "ak_bmsc=edge-token", gotHeaders.Get("Cookie"))
	require.Equal(t, float64(2), gotBody["apiVersion"])
	require.Equal(t, float64(3), gotBody["clientDevice"])
	require.IsType(t, "", gotBody["requestInfo"], "requestInfo must travel as a string")
}

func TestInvokeDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error":{"errorcode":4194377,"errorname":"ERR_AUTHENTICATION_REQUIRED","errortdf":{"errorString":"expired"}}}`))
	}))
	defer srv.Close()

	c := NewProcessClient(ProcessConfig{BaseURL: srv.URL, BlazeID: "madden-2026-ps5"}, zap.NewNop())
	_, err := c.Invoke(context.Background(), "tkt", searchEnvelope(t))

	var apiErr *blaze.APIError
	require.True(t, errors.As(err, &apiErr))
	require.True(t, apiErr.AuthStale())
}

func TestInvokeSurfacesUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewProcessClient(ProcessConfig{BaseURL: srv.URL, BlazeID: "madden-2026-xbsx-gen5"}, zap.NewNop())
	_, err := c.Invoke(context.Background(), "tkt", searchEnvelope(t))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.Status)
}
