// Package ea holds the HTTP clients for EA's account, identity and WAL
// backends. Endpoints, identifiers and header sets are pinned to what the
// companion app sends; the backends reject anything else.
package ea

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ea_http_requests_total",
		Help: "Requests answered by EA backends, by host and status class",
	}, []string{"host", "code"})

	httpErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ea_http_errors_total",
		Help: "Transport failures talking to EA backends, by host",
	}, []string{"host"})
)

// Companion app OAuth identity. The client id stays on the 25 naming even
// for later cycles.
const (
	ClientID     = "MCA_25_COMP_APP"
	ClientSecret = "wfGAWnrxLroZOwwELYA2ZrAuaycuF2WDb00zOLv48Sb79viJDGlyD6OyK8pM5eIiv_20240731135155"
	AuthSource   = "317239"
	MachineKey   = "444d362e8e067fe2"
	RedirectURL  = "http://127.0.0.1/success"

	// MobileUserAgent matches the Android build the backends expect.
	MobileUserAgent = "Dalvik/2.1.0 (Linux; U; Android 13; Android SDK built for x86_64 Build/TE1A.220922.034)"

	applicationKey = "MADDEN-MCA"
)

const (
	defaultTimeout = 30 * time.Second

	// Auction pages run large; cap reads well above them.
	maxResponseBytes = 8 << 20

	errBodySnippet = 512
)

// StatusError is a non-2xx upstream response carrying a truncated body
// snippet for logs.
type StatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.URL, e.Status, e.Body)
}

func newHTTPClient(timeout time.Duration, insecureTLS bool) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: insecureTLS,
			MinVersion:         tls.VersionTLS12,
		},
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}
}

// doRead executes the request and returns the body, turning non-2xx statuses
// into *StatusError.
func doRead(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		httpErrors.WithLabelValues(req.URL.Host).Inc()
		return nil, err
	}
	defer resp.Body.Close()
	httpRequests.WithLabelValues(req.URL.Host, fmt.Sprintf("%dxx", resp.StatusCode/100)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Status: resp.StatusCode,
			URL:    req.URL.String(),
			Body:   truncate(body, errBodySnippet),
		}
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
