package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TokenFileStore keeps the token record in a JSON file.
type TokenFileStore struct {
	Path string
}

// Load reads the record. Besides the persisted shape, a raw OAuth response
// dump ({access_token, refresh_token, expires_in}) and the older jwt_token
// field are accepted, so a bootstrap capture can seed the lifecycle directly.
func (s TokenFileStore) Load() (*TokenRecord, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var probe struct {
		AccessToken  string    `json:"access_token"`
		JWTToken     string    `json:"jwt_token"`
		RefreshToken string    `json:"refresh_token"`
		ExpiresAt    time.Time `json:"expires_at"`
		IssuedAt     time.Time `json:"issued_at"`
		ExpiresIn    int       `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	access := probe.AccessToken
	if access == "" {
		access = probe.JWTToken
	}
	if access == "" {
		return nil, fmt.Errorf("parse %s: no access token field", s.Path)
	}
	rec := &TokenRecord{
		AccessToken:  access,
		RefreshToken: probe.RefreshToken,
		ExpiresAt:    probe.ExpiresAt,
		IssuedAt:     probe.IssuedAt,
	}
	if rec.ExpiresAt.IsZero() {
		ttl := probe.ExpiresIn
		if ttl <= 0 {
			ttl = 3600
		}
		now := time.Now().UTC()
		rec.IssuedAt = now
		rec.ExpiresAt = now.Add(time.Duration(ttl) * time.Second)
	}
	return rec, nil
}

func (s TokenFileStore) Save(rec *TokenRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.Path, data)
}

// BundlePoolFile persists captured bundles as a JSON array.
type BundlePoolFile struct {
	Path string
}

func (s BundlePoolFile) Load() ([]CapturedBundle, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var entries []CapturedBundle
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return entries, nil
}

func (s BundlePoolFile) SaveBundles(entries []CapturedBundle) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.Path, data)
}

// SessionContextFile merges updates into a shared JSON context file. Fields
// owned by the capture tooling (user agent, cookies, service names) survive
// ticket updates untouched.
type SessionContextFile struct {
	Path string
}

func (s SessionContextFile) Load() (map[string]any, error) {
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	ctx := map[string]any{}
	if err := json.Unmarshal(raw, &ctx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return ctx, nil
}

// SaveTicket merges the fresh ticket into the context file, touching only the
// session_ticket key.
func (s SessionContextFile) SaveTicket(t *SessionTicket) error {
	ctx, err := s.Load()
	if err != nil {
		return err
	}
	ctx["session_ticket"] = t.Ticket
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.Path, data)
}

// writeFileAtomic replaces path through a temp file and rename, so readers
// never observe a partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
