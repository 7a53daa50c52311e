package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/shared/constants"
)

const userAgent = "OutLight-Monitor/1.0"

type HTTPProbe struct {
	client  *http.Client
	timeout time.Duration
}

func NewHTTPProbe(timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = constants.HTTPTimeout
	}

	return &HTTPProbe{
		timeout: timeout,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// Execute issues one GET. The context deadline is the smaller of ctx and the
// target timeout.
func (p *HTTPProbe) Execute(ctx context.Context, target domain.EndpointTarget) domain.CheckResult {
	fullURL, err := normalizeURL(target.URL)
	if err != nil {
		return domain.NewErrorResult(target.Name, domain.WithKind(domain.ErrKindProtocol, err))
	}

	timeout := target.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.NewErrorResult(target.Name, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return domain.NewErrorResult(target.Name, fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	preview, _ := readResponseBody(resp)
	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result := domain.NewWarningResult(target.Name, latency, resp.StatusCode, &domain.HTTPStatusError{StatusCode: resp.StatusCode})
		result.Detail = preview
		return result
	}

	result := domain.NewSuccessResult(target.Name, latency, resp.StatusCode)
	if result.LatencyMS <= 0 {
		result.LatencyMS = 0.001
	}
	return result
}

func normalizeURL(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		u, err = url.Parse("http://" + target)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("invalid URL format: %s", target)
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// readResponseBody drains at most 4 KiB so the connection can be reused.
func readResponseBody(resp *http.Response) (string, error) {
	if resp.Body == nil {
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}

	if len(body) > constants.MessagePreviewLen {
		body = body[:constants.MessagePreviewLen]
	}
	return string(body), nil
}
