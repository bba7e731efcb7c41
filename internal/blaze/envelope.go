package blaze

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/backfield/gridiron/internal/auth"
)

const (
	// Envelope constants captured from live app traffic.
	apiVersion    = 2
	clientDevice  = 3
	componentName = "mut"
	ipAddress     = "127.0.0.1"
)

// MessageAuthData is the signed material carried inside requestInfo.
type MessageAuthData struct {
	AuthCode string `json:"authCode"`
	AuthData string `json:"authData"`
	AuthType int    `json:"authType"`
}

// RequestInfo is the inner Process payload. Field order matches the app's
// serializer; the backend has only ever been observed with this ordering.
type RequestInfo struct {
	MessageExpirationTime int64           `json:"messageExpirationTime"`
	DeviceID              string          `json:"deviceId"`
	CommandName           string          `json:"commandName"`
	ComponentID           int             `json:"componentId"`
	CommandID             int             `json:"commandId"`
	IPAddress             string          `json:"ipAddress"`
	RequestPayload        string          `json:"requestPayload"`
	ComponentName         string          `json:"componentName"`
	MessageAuthData       MessageAuthData `json:"messageAuthData"`
}

// ProcessEnvelope is the outer Process body. RequestInfo is carried as a
// string of compact JSON, not a nested object.
type ProcessEnvelope struct {
	APIVersion   int    `json:"apiVersion"`
	ClientDevice int    `json:"clientDevice"`
	RequestInfo  string `json:"requestInfo"`
}

// ProcessCall describes one command invocation to wrap into an envelope.
type ProcessCall struct {
	Strategy  Strategy
	Operation string
	Payload   any
	DeviceID  string
	Bundle    auth.AuthBundle
	ExpiresAt time.Time
}

// NewEnvelope builds the Process body for a call. A zero ExpiresAt takes the
// bundle's own expiry.
func NewEnvelope(call ProcessCall) (ProcessEnvelope, error) {
	cmd, err := call.Strategy.Command(call.Operation)
	if err != nil {
		return ProcessEnvelope{}, err
	}

	payload := call.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := compactJSON(payload)
	if err != nil {
		return ProcessEnvelope{}, fmt.Errorf("encode request payload: %w", err)
	}

	expires := call.ExpiresAt
	if expires.IsZero() {
		expires = call.Bundle.ExpiresAt
	}

	info := RequestInfo{
		MessageExpirationTime: expires.Unix(),
		DeviceID:              call.DeviceID,
		CommandName:           cmd.Name,
		ComponentID:           call.Strategy.ComponentID,
		CommandID:             cmd.ID,
		IPAddress:             ipAddress,
		RequestPayload:        payloadJSON,
		ComponentName:         componentName,
		MessageAuthData: MessageAuthData{
			AuthCode: call.Bundle.AuthCode,
			AuthData: call.Bundle.AuthData,
			AuthType: call.Bundle.AuthType,
		},
	}
	infoJSON, err := compactJSON(info)
	if err != nil {
		return ProcessEnvelope{}, fmt.Errorf("encode request info: %w", err)
	}

	return ProcessEnvelope{
		APIVersion:   apiVersion,
		ClientDevice: clientDevice,
		RequestInfo:  infoJSON,
	}, nil
}

// compactJSON marshals without HTML escaping, matching the app serializer.
func compactJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
