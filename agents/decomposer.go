package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/docsage/ragpipe/common/httpx"
	"github.com/docsage/ragpipe/config"
)

// Result is the answer an agent service produced for a decomposed task.
type Result struct {
	Response   string   `json:"response"`
	Sources    []string `json:"sources,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
}

// Decomposer hands a complex task to an external multi-agent service that
// breaks it into subtasks and synthesizes an answer.
type Decomposer interface {
	Orchestrate(ctx context.Context, task string, prefs map[string]string, params map[string]any) (*Result, error)
}

const defaultTimeout = 30 * time.Second

// HTTPDecomposer calls an agent orchestration endpoint over JSON.
type HTTPDecomposer struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *httpx.Client
	logger   *zap.Logger
}

func NewHTTPDecomposer(cfg *config.AgentsConfig, logger *zap.Logger) *HTTPDecomposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPDecomposer{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		timeout:  timeout,
		client:   httpx.NewFromConfig(cfg.HTTP, logger),
		logger:   logger,
	}
}

type orchestrateRequest struct {
	Task        string            `json:"task"`
	Preferences map[string]string `json:"preferences,omitempty"`
	Parameters  map[string]any    `json:"parameters,omitempty"`
}

func (d *HTTPDecomposer) Orchestrate(ctx context.Context, task string, prefs map[string]string, params map[string]any) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	body, err := json.Marshal(orchestrateRequest{Task: task, Preferences: prefs, Parameters: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent orchestrate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("agent endpoint returned %d: %s", resp.StatusCode, payload)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode agent response: %w", err)
	}
	if result.Response == "" {
		return nil, fmt.Errorf("agent returned empty response")
	}
	return &result, nil
}
