// Package remote talks to a docking sidecar over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dockapi/internal/domain"
	"github.com/kailas-cloud/dockapi/internal/transport/wire"
)

const maxReplyBytes = 32 << 20

// ErrEngineUnavailable signals a sidecar that answered with a server error.
var ErrEngineUnavailable = domain.ErrEngineUnavailable

// Config holds the sidecar settings.
type Config struct {
	BaseURL    string
	MaxRetries int
	Params     wire.DockParams
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Engine is a domain.Engine backed by a remote docking sidecar.
type Engine struct {
	baseURL    string
	maxRetries int
	params     wire.DockParams
	client     *http.Client
	logger     *zap.Logger
}

// NewEngine creates a remote docking engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("remote engine base URL is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: cfg.MaxRetries,
		params:     cfg.Params,
		client:     client,
		logger:     logger,
	}, nil
}

// LoadTarget returns a handle; the sidecar validates the name when docking.
func (e *Engine) LoadTarget(_ context.Context, name string) (domain.Target, error) {
	return &target{name: name, engine: e}, nil
}

// ListTargets fetches the sidecar's receptor catalogue.
func (e *Engine) ListTargets(ctx context.Context) ([]string, error) {
	reply, err := e.do(ctx, http.MethodGet, "/targets", nil)
	if err != nil {
		return nil, err
	}
	if err := reply.Err(); err != nil {
		return nil, err
	}
	return reply.Targets, nil
}

// HealthCheck verifies the sidecar answers its health endpoint.
func (e *Engine) HealthCheck(ctx context.Context) error {
	reply, err := e.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return fmt.Errorf("engine health: %w", err)
	}
	if err := reply.Err(); err != nil {
		return fmt.Errorf("engine health: %w", err)
	}
	return nil
}

func (e *Engine) do(ctx context.Context, method, path string, body any) (wire.Reply, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return wire.Reply{}, fmt.Errorf("marshal engine request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return wire.Reply{}, fmt.Errorf("build engine request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := doWithRetry(ctx, e.client, req, e.maxRetries)
	if err != nil {
		return wire.Reply{}, fmt.Errorf("engine %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return wire.Reply{}, fmt.Errorf("read engine reply: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		detail := serverErrorDetail(data)
		e.logger.Warn("Docking engine returned server error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", detail),
		)
		if detail == "" {
			return wire.Reply{}, fmt.Errorf("engine %s returned %d: %w", path, resp.StatusCode, ErrEngineUnavailable)
		}
		return wire.Reply{}, fmt.Errorf("engine %s returned %d: %w: %s", path, resp.StatusCode, ErrEngineUnavailable, detail)
	}

	reply, err := wire.DecodeReply(data)
	if err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			if detail := extractDetail(data); detail != "" {
				return wire.Reply{}, domain.NewDockingError(detail)
			}
			return wire.Reply{}, domain.NewDockingError(
				fmt.Sprintf("docking engine rejected the request with status %d", resp.StatusCode))
		}
		return wire.Reply{}, err
	}

	if resp.StatusCode >= http.StatusBadRequest && reply.OK {
		reply.OK = false
	}
	if !reply.OK && reply.Error == "" {
		reply.Error = extractDetail(data)
	}
	return reply, nil
}

// extractDetail reads a FastAPI-style {"detail": "..."} error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

// serverErrorDetail reads the engine's description from a server error body,
// either {"detail": "..."} or a failed wire reply.
func serverErrorDetail(body []byte) string {
	if detail := extractDetail(body); detail != "" {
		return detail
	}
	if reply, err := wire.DecodeReply(body); err == nil && !reply.OK {
		return reply.Error
	}
	return ""
}

type target struct {
	name   string
	engine *Engine
}

func (t *target) Name() string { return t.name }

// Dock posts the dock request to the sidecar.
func (t *target) Dock(ctx context.Context, smiles string) (domain.DockingOutput, error) {
	reply, err := t.engine.do(ctx, http.MethodPost, "/dock", wire.NewDockRequest(t.name, smiles, t.engine.params))
	if err != nil {
		return domain.DockingOutput{}, err
	}
	return reply.Output()
}
