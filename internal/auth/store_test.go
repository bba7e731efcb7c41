package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := TokenFileStore{Path: path}

	rec := &TokenRecord{
		AccessToken:  "access",
		RefreshToken: "refresh",
		IssuedAt:     time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
		ExpiresAt:    time.Date(2025, 9, 1, 16, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(rec))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, rec.AccessToken, loaded.AccessToken)
	require.Equal(t, rec.RefreshToken, loaded.RefreshToken)
	require.True(t, rec.ExpiresAt.Equal(loaded.ExpiresAt))
	require.True(t, rec.IssuedAt.Equal(loaded.IssuedAt))
}

func TestTokenFileStoreLoadsRawGrantDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	blob := `{"access_token":"access","refresh_token":"refresh","token_type":"Bearer","expires_in":7200}`
	require.NoError(t, os.WriteFile(path, []byte(blob), 0o644))

	loaded, err := TokenFileStore{Path: path}.Load()
	require.NoError(t, err)
	require.Equal(t, "access", loaded.AccessToken)
	require.Equal(t, "refresh", loaded.RefreshToken)
	require.WithinDuration(t, time.Now().Add(2*time.Hour), loaded.ExpiresAt, 5*time.Second)
}

func TestTokenFileStoreLoadsLegacyField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	blob := `{"jwt_token":"legacy-access","refresh_token":"refresh"}`
	require.NoError(t, os.WriteFile(path, []byte(blob), 0o644))

	loaded, err := TokenFileStore{Path: path}.Load()
	require.NoError(t, err)
	require.Equal(t, "legacy-access", loaded.AccessToken)
	// No TTL in the file either, so the default applies.
	require.WithinDuration(t, time.Now().Add(time.Hour), loaded.ExpiresAt, 5*time.Second)
}

func TestTokenFileStoreRejectsTokenlessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"refresh_token":"refresh"}`), 0o644))

	_, err := TokenFileStore{Path: path}.Load()
	require.Error(t, err)
}

func TestTokenFileStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := TokenFileStore{Path: filepath.Join(dir, "tokens.json")}

	require.NoError(t, store.Save(&TokenRecord{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, store.Save(&TokenRecord{AccessToken: "b", RefreshToken: "r"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "b", loaded.AccessToken)
}

func TestSessionContextMergePreservesForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current_session_context.json")
	seed := map[string]any{
		"session_ticket": "old-ticket",
		"user_agent":     "CompanionApp/25.1",
		"Cookie":         "ak_bmsc=abc123",
		"blaze_id":       "madden-2026-ps5",
	}
	blob, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, blob, 0o644))

	store := SessionContextFile{Path: path}
	require.NoError(t, store.SaveTicket(&SessionTicket{Ticket: "new-ticket", BlazeID: 42}))

	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "new-ticket", got["session_ticket"])
	require.Equal(t, "CompanionApp/25.1", got["user_agent"])
	require.Equal(t, "ak_bmsc=abc123", got["Cookie"])
	require.Equal(t, "madden-2026-ps5", got["blaze_id"])
}

func TestSessionContextCreatesFileWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "current_session_context.json")
	store := SessionContextFile{Path: path}

	require.NoError(t, store.SaveTicket(&SessionTicket{Ticket: "fresh"}))

	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "fresh", got["session_ticket"])
}

func TestBundlePoolFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth_pool.json")
	store := BundlePoolFile{Path: path}

	entries := []CapturedBundle{captured("a"), captured("b")}
	require.NoError(t, store.SaveBundles(entries))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, entries, loaded)

	// The file stays a plain indented JSON array readable by other tools.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, byte('['), raw[0])
}
