package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
	rerrors "rephrase/pkg/errors"
	"rephrase/pkg/logger"
)

// maxBodyBytes bounds a single page read.
const maxBodyBytes = 32 << 20

// Page is the result of a successful fetch.
type Page struct {
	Body        []byte
	FinalURL    string
	StatusCode  int
	ContentType string
}

// Fetcher retrieves the document behind an identifier.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (*Page, error)
}

// HTTPFetcher is a Fetcher backed by net/http.
type HTTPFetcher struct {
	httpClient *http.Client
	headers    map[string]string
	logger     logger.Logger
}

// New creates an HTTPFetcher with a fixed per-request timeout
func New(timeout time.Duration, userAgent string, log logger.Logger) *HTTPFetcher {
	if log == nil {
		log = logger.NewNopLogger()
	}

	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
	if userAgent != "" {
		headers["User-Agent"] = userAgent
	}

	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		logger:     log,
	}
}

// SetHeader sets a custom header sent with every request
func (f *HTTPFetcher) SetHeader(key, value string) {
	f.headers[key] = value
}

// Fetch performs a GET for id and returns the decoded page.
func (f *HTTPFetcher) Fetch(ctx context.Context, id string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, id, nil)
	if err != nil {
		return nil, rerrors.Fetch(id, 0, fmt.Errorf("failed to create request: %w", err))
	}
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	f.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"url": id,
	})

	resp, err := f.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		f.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      id,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, rerrors.Fetch(id, 0, err)
	}
	defer resp.Body.Close()

	finalURL := id
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	f.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":       id,
		"final_url": finalURL,
		"status":    resp.StatusCode,
		"duration":  duration,
	})

	if err := f.checkResponseStatus(id, resp); err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), contentType)
	if err != nil {
		return nil, rerrors.Fetch(id, resp.StatusCode, fmt.Errorf("failed to decode body: %w", err))
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, rerrors.Fetch(id, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	return &Page{
		Body:        body,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
	}, nil
}

// checkResponseStatus turns any non-2xx status into a fetch error
func (f *HTTPFetcher) checkResponseStatus(id string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    id,
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		f.logger.WarnWithFields("resource not found", fields)
	case resp.StatusCode == http.StatusTooManyRequests:
		f.logger.WarnWithFields("rate limit exceeded", fields)
	case resp.StatusCode >= 500:
		f.logger.ErrorWithFields("server error", fields)
	default:
		f.logger.ErrorWithFields("unexpected status code", fields)
	}

	return rerrors.Fetch(id, resp.StatusCode, fmt.Errorf("unexpected status: %s", resp.Status))
}
