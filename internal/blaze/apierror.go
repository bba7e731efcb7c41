package blaze

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is the Blaze error envelope the backend returns with HTTP 200.
type APIError struct {
	Code    int64
	Name    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ea api error %d (%s): %s", e.Code, e.Name, e.Message)
}

// AuthStale reports whether the error points at expired auth material rather
// than a malformed request, which is the cue to rotate credentials and retry
// once.
func (e *APIError) AuthStale() bool {
	s := strings.ToLower(e.Name + " " + e.Message)
	return strings.Contains(s, "auth") ||
		strings.Contains(s, "stale") ||
		strings.Contains(s, "expired")
}

type errorEnvelope struct {
	Error *struct {
		ErrorCode json.Number `json:"errorcode"`
		ErrorName string      `json:"errorname"`
		ErrorTDF  struct {
			ErrorString string `json:"errorString"`
		} `json:"errortdf"`
	} `json:"error"`
}

// CheckResponse inspects a decoded 200 body for the error envelope. It
// returns nil when the body carries no error object.
func CheckResponse(body []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Not an object at all; the caller's own decode will say more.
		return nil
	}
	if env.Error == nil {
		return nil
	}
	code, _ := env.Error.ErrorCode.Int64()
	apiErr := &APIError{
		Code:    code,
		Name:    env.Error.ErrorName,
		Message: env.Error.ErrorTDF.ErrorString,
	}
	if apiErr.Name == "" {
		apiErr.Name = "UNKNOWN_ERROR"
	}
	return apiErr
}
