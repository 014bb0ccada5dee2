package dockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout   = 15 * time.Minute
	defaultUserAgent = "dockapi-go"
	maxErrorBody     = 64 << 10
)

// DockRequest is a single docking query.
type DockRequest struct {
	Target    string `json:"target"`
	SMILES    string `json:"smiles"`
	ReturnMol bool   `json:"return_mol"`
}

// DockResult is the service's answer to a docking query.
type DockResult struct {
	// Score is the binding affinity estimate (kcal/mol for Vina-based engines).
	Score float64 `json:"score"`
	// Details holds the engine's extra fields verbatim; numbers are json.Number.
	Details map[string]any `json:"details"`
	// Cache is the X-Docking-Cache header: "hit", "miss" or empty.
	Cache string `json:"-"`
	// RequestID is the server-assigned X-Request-ID.
	RequestID string `json:"-"`
}

// Ligand returns the docked pose (an MDL molblock) when it was requested.
func (r *DockResult) Ligand() (string, bool) {
	s, ok := r.Details["ligand"].(string)
	return s, ok
}

// Client is the dockapi SDK entry point. It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	apiKey    string
	userAgent string
	obs       *observer
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if baseURL == "" {
		return nil, errors.New("dockapi: base URL required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("dockapi: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("dockapi: base URL must be http or https, got %q", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:   u,
		http:      hc,
		apiKey:    cfg.apiKey,
		userAgent: cfg.userAgent,
		obs:       obs,
	}, nil
}

// Dock submits a docking query as a JSON POST.
func (c *Client) Dock(ctx context.Context, req DockRequest) (res *DockResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("dock", start, err, "target", req.Target) }()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("dockapi: marshal request: %w", err)
	}
	return c.dock(ctx, http.MethodPost, nil, body)
}

// DockQuery submits the same query as a GET with query parameters.
func (c *Client) DockQuery(ctx context.Context, req DockRequest) (res *DockResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("dock_query", start, err, "target", req.Target) }()

	q := url.Values{}
	q.Set("target", req.Target)
	q.Set("smiles", req.SMILES)
	q.Set("return_mol", strconv.FormatBool(req.ReturnMol))
	return c.dock(ctx, http.MethodGet, q, nil)
}

func (c *Client) dock(ctx context.Context, method string, query url.Values, body []byte) (*DockResult, error) {
	resp, err := c.do(ctx, method, "/", query, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var res DockResult
	if err := decodeJSON(resp.Body, &res); err != nil {
		return nil, fmt.Errorf("dockapi: decode result: %w", err)
	}
	res.Cache = resp.Header.Get("X-Docking-Cache")
	res.RequestID = resp.Header.Get("X-Request-ID")
	return &res, nil
}

// Targets lists the receptors the engine can dock against.
func (c *Client) Targets(ctx context.Context) (targets []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("targets", start, err) }()

	resp, err := c.do(ctx, http.MethodGet, "/targets", nil, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var out struct {
		Targets []string `json:"targets"`
	}
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("dockapi: decode targets: %w", err)
	}
	return out.Targets, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader = http.NoBody
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, fmt.Errorf("dockapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dockapi: %s %s: %w", method, path, err)
	}
	return resp, nil
}

func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(v)
}

// decodeAPIError builds an *APIError from a non-2xx response.
func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &body) == nil {
		apiErr.Detail = body.Detail
	}
	if apiErr.Detail == "" {
		apiErr.Detail = strings.TrimSpace(string(data))
	}
	return apiErr
}
