package auth

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"
)

// Wire constants reproduced from captures of the native
// EA::Online::Security::MessageAuthHelper. These are observed facts, not
// tunables: the server validates the salted digest over the wire blob, so
// changing any of them breaks every outbound call.
const (
	// StaticData is the fixed marker the native payload builder embeds in
	// every signing payload.
	StaticData = "05e6a7ead5584ab4"

	// AuthType tags the bundle variant inside messageAuthData (0x01040001).
	AuthType = 17039361

	// BundleTTL is the default validity window stamped on a fresh bundle.
	BundleTTL = 5 * time.Minute
)

const nonceLen = 4

var (
	processDataConstant = mustHex("00aaba021394080040f901028052f603")

	// authCodeSalt includes the trailing NUL observed on the wire.
	authCodeSalt = []byte(":SA5!FL;e12e0p[p :)\x00")
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("auth: bad hex constant: " + s)
	}
	return b
}

// BundleRequest carries the inputs for one signing bundle.
//
// DeviceID is accepted for parity with the native helper signature; the
// current transform does not fold it into the payload.
type BundleRequest struct {
	// Nonce must be exactly 4 bytes when set. Leave nil to draw a random one.
	Nonce          []byte
	DeviceID       string
	RequestID      uint32
	BlazeID        int64
	AdditionalData string
	ExpiresAt      time.Time
}

// AuthBundle is the signed material placed into messageAuthData. AuthCode and
// AuthData are base64; the digest covers the encrypted blob, never the
// plaintext.
type AuthBundle struct {
	AuthCode  string
	AuthData  string
	AuthType  int
	ExpiresAt time.Time
}

// Expired reports whether the bundle's validity window has passed at the
// given instant.
func (b AuthBundle) Expired(at time.Time) bool {
	return !at.Before(b.ExpiresAt)
}

// Codec computes and decodes signing bundles. It holds no state and is safe
// for concurrent use.
type Codec struct{}

// Compute produces a fresh bundle. With the nonce fixed the output is fully
// deterministic, which is what lets the test vectors pin the transform.
func (Codec) Compute(req BundleRequest) (AuthBundle, error) {
	nonce := req.Nonce
	switch {
	case nonce == nil:
		nonce = make([]byte, nonceLen)
		if _, err := rand.Read(nonce); err != nil {
			return AuthBundle{}, fmt.Errorf("draw nonce: %w", err)
		}
	case len(nonce) != nonceLen:
		return AuthBundle{}, fmt.Errorf("%w: got %d", ErrNonceLength, len(nonce))
	}

	payload, err := signingPayload(req)
	if err != nil {
		return AuthBundle{}, fmt.Errorf("build payload: %w", err)
	}

	plaintext := make([]byte, 0, nonceLen+len(payload))
	plaintext = append(plaintext, nonce...)
	plaintext = append(plaintext, payload...)
	encrypted := processData(plaintext)

	h := md5.New()
	h.Write(authCodeSalt)
	h.Write(encrypted)
	code := h.Sum(nil)

	expires := req.ExpiresAt
	if expires.IsZero() {
		expires = time.Now().UTC().Add(BundleTTL)
	}

	return AuthBundle{
		AuthCode:  base64.StdEncoding.EncodeToString(code),
		AuthData:  base64.StdEncoding.EncodeToString(encrypted),
		AuthType:  AuthType,
		ExpiresAt: expires,
	}, nil
}

// Decode reverses the transform on a base64 authData blob and returns the hex
// nonce together with the inner JSON text.
func (Codec) Decode(authData string) (nonceHex, payload string, err error) {
	raw, err := base64.StdEncoding.DecodeString(authData)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(raw) < nonceLen+1 {
		return "", "", fmt.Errorf("%w: %d bytes", ErrDecode, len(raw))
	}
	plain := processData(raw)
	body := plain[nonceLen:]
	if !utf8.Valid(body) {
		return "", "", fmt.Errorf("%w: payload is not valid UTF-8", ErrDecode)
	}
	return hex.EncodeToString(raw[:nonceLen]), string(body), nil
}

// signingPayload serializes the inner JSON with the exact key order and
// compact separators the on-device serializer emits. Kept separate from the
// cipher so newly discovered fields slot in without touching the transform.
func signingPayload(req BundleRequest) ([]byte, error) {
	p := struct {
		StaticData     string `json:"staticData"`
		RequestID      uint32 `json:"requestId"`
		BlazeID        int64  `json:"blazeId"`
		AdditionalData string `json:"additionalData,omitempty"`
	}{
		StaticData:     StaticData,
		RequestID:      req.RequestID,
		BlazeID:        req.BlazeID,
		AdditionalData: req.AdditionalData,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// processData XORs everything after the 4-byte nonce with the derived
// keystream, mirroring the native ProcessData routine. The transform is its
// own inverse.
func processData(buf []byte) []byte {
	ks := deriveKeystream(buf[:nonceLen])
	out := make([]byte, len(buf))
	copy(out, buf)
	for i := nonceLen; i < len(out); i++ {
		out[i] ^= ks[(i-nonceLen)%len(ks)]
	}
	return out
}

func deriveKeystream(nonce []byte) []byte {
	h := md5.New()
	h.Write(nonce)
	h.Write(processDataConstant)
	return h.Sum(nil)
}
