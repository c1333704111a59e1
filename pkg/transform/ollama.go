package transform

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rephrase/pkg/logger"
)

// OllamaClient talks to an Ollama server's generate endpoint.
type OllamaClient struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// NewOllamaClient creates a client for the server at endpoint
func NewOllamaClient(endpoint string, timeout time.Duration, log logger.Logger) *OllamaClient {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &OllamaClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// Transform starts a streaming generation. The returned stream must be
// drained to release the connection.
func (c *OllamaClient) Transform(ctx context.Context, req Request) (Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	payload, err := json.Marshal(ollamaRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: true,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.DebugWithFields("sending generate request", map[string]interface{}{
		"endpoint": c.endpoint,
		"model":    req.Model,
		"bytes":    len(req.Prompt),
	})

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("generate returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return func(yield func(string, error) bool) {
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk ollamaChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				yield("", fmt.Errorf("failed to decode chunk: %w", err))
				return
			}
			if chunk.Error != "" {
				yield("", errors.New(chunk.Error))
				return
			}
			if chunk.Response != "" && !yield(chunk.Response, nil) {
				return
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("failed to read stream: %w", err))
			return
		}
		yield("", io.ErrUnexpectedEOF)
	}, nil
}
