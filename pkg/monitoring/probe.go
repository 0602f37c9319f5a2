package monitoring

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/rrfy/monitoring-system/pkg/errors"
	"github.com/rrfy/monitoring-system/pkg/logging"
)

// HealthyMarker must appear in the trimmed, lowercased response body.
const HealthyMarker = "hello world"

// maxBodySize bounds how much of the response body is inspected.
const maxBodySize = 1 << 20

// ProbeResult is the verdict of a single probe.
type ProbeResult struct {
	Healthy    bool
	StatusCode int // 0 when no response was received
	Reason     string
	Err        error // transport failure, nil otherwise
}

// Prober answers "is the application healthy right now" with one round trip.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) ProbeResult
}

type HTTPProber struct {
	transport http.RoundTripper
	logger    logging.Logger
}

// NewHTTPProber creates a prober; a nil transport means http.DefaultTransport.
func NewHTTPProber(transport http.RoundTripper, logger logging.Logger) *HTTPProber {
	return &HTTPProber{
		transport: transport,
		logger:    logger,
	}
}

// Probe issues a GET against url, following redirects. Transport failures
// are reported as an unhealthy result, never as an error.
func (p *HTTPProber) Probe(ctx context.Context, url string, timeout time.Duration) ProbeResult {
	if err := ValidateProbeTarget(url, timeout); err != nil {
		p.logger.Warnf("Probe of %s rejected: %v", url, err)
		return ProbeResult{Reason: err.Error(), Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{
		Transport: p.transport,
		Timeout:   timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		domainErr := errors.NewValidationError("failed to create HTTP request", err).WithContext("url", url)
		p.logger.Warnf("Request to %s failed: %v", url, domainErr)
		return ProbeResult{Reason: domainErr.Error(), Err: domainErr}
	}

	resp, err := client.Do(req)
	if err != nil {
		domainErr := classifyTransportError(ctx, url, err)
		p.logger.Warnf("Request to %s failed: %v", url, domainErr)
		return ProbeResult{Reason: domainErr.Error(), Err: domainErr}
	}
	defer resp.Body.Close()

	p.logger.Infof("Probe %s -> %d", url, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if len(body) > maxBodySize {
		body = trimPartialRune(body[:maxBodySize])
	}
	if err != nil {
		p.logger.Debugf("Failed to read response body from %s: %v", url, err)
		return ProbeResult{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("failed to read response body: %v", err),
		}
	}

	healthy, reason := IsSuccessResponse(resp.StatusCode, resp.Header.Get("Content-Type"), body)
	if !healthy {
		p.logger.Debugf("Unhealthy response from %s: %s", url, reason)
	}

	return ProbeResult{
		Healthy:    healthy,
		StatusCode: resp.StatusCode,
		Reason:     reason,
	}
}

// IsSuccessResponse applies the health predicate: a 2xx status and a body
// containing HealthyMarker, ignoring case and surrounding whitespace. The
// body is decoded with the charset declared in contentType, UTF-8 otherwise.
func IsSuccessResponse(statusCode int, contentType string, body []byte) (bool, string) {
	if statusCode/100 != 2 {
		return false, fmt.Sprintf("non-2xx status code: %d", statusCode)
	}

	decoded, err := DecodeBody(contentType, body)
	if err != nil {
		return false, fmt.Sprintf("response body is not valid text: %v", err)
	}

	text := strings.ToLower(strings.TrimSpace(decoded))
	if !strings.Contains(text, HealthyMarker) {
		return false, fmt.Sprintf("response body does not contain %q", HealthyMarker)
	}

	return true, fmt.Sprintf("status %d with expected body", statusCode)
}

// DecodeBody converts body to text. A charset parameter naming a known
// encoding selects it; a missing or unknown one means strict UTF-8.
func DecodeBody(contentType string, body []byte) (string, error) {
	if label := charsetLabel(contentType); label != "" {
		if enc, err := htmlindex.Get(label); err == nil {
			if name, _ := htmlindex.Name(enc); name != "utf-8" {
				decoded, err := enc.NewDecoder().Bytes(body)
				if err != nil {
					return "", fmt.Errorf("cannot decode %s: %w", name, err)
				}
				return string(decoded), nil
			}
		}
	}

	if !utf8.Valid(body) {
		return "", fmt.Errorf("invalid UTF-8")
	}
	return string(body), nil
}

func charsetLabel(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}

// trimPartialRune drops a multibyte sequence cut off at the end of body.
func trimPartialRune(body []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(body); i++ {
		start := len(body) - i
		if !utf8.RuneStart(body[start]) {
			continue
		}
		if !utf8.FullRune(body[start:]) {
			return body[:start]
		}
		return body
	}
	return body
}

func classifyTransportError(ctx context.Context, url string, err error) *errors.DomainError {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.NewTimeoutError("HTTP request timed out", err).WithContext("url", url)
	}
	if urlErr, ok := err.(interface{ Timeout() bool }); ok && urlErr.Timeout() {
		return errors.NewTimeoutError("HTTP request timed out", err).WithContext("url", url)
	}
	return errors.NewNetworkError("HTTP request failed", err).WithContext("url", url)
}
