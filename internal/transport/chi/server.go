package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dockapi/internal/domain"
	logpkg "github.com/kailas-cloud/dockapi/internal/logger"
	healthuc "github.com/kailas-cloud/dockapi/internal/usecase/health"
)

const (
	maxBodyBytes = 1 << 20

	// statusClientClosedRequest marks requests abandoned by the client.
	statusClientClosedRequest = 499
)

// CacheHeader reports whether the docking result came from the cache.
const CacheHeader = "X-Docking-Cache"

// DockingService runs docking queries.
type DockingService interface {
	Dock(ctx context.Context, q domain.Query) (domain.DockingResult, error)
	Targets(ctx context.Context) ([]string, error)
}

// HealthService aggregates component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers of the docking API.
type Server struct {
	docking       DockingService
	health        HealthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(docking DockingService, health HealthService, logger *zap.Logger) *Server {
	s := &Server{
		docking: docking,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		dockingFailureHandler,
		messageHandler(domain.ErrInvalidQuery, http.StatusBadRequest),
		messageHandler(domain.ErrDockingTimeout, http.StatusGatewayTimeout),
		messageHandler(domain.ErrEngineUnavailable, http.StatusBadGateway),
		messageHandler(domain.ErrTargetListingUnsupported, http.StatusNotImplemented),
		messageHandler(context.Canceled, statusClientClosedRequest),
	}
	return s
}

type dockRequest struct {
	Target    *string `json:"target"`
	SMILES    *string `json:"smiles"`
	ReturnMol *flag   `json:"return_mol"`
}

// flag is a boolean that also accepts the usual textual and 0/1 spellings.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	var text string
	switch v := v.(type) {
	case bool:
		*f = flag(v)
		return nil
	case float64:
		text = strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		text = v
	default:
		return fmt.Errorf("cannot use %s as a boolean", data)
	}
	b, err := parseFlag(text)
	if err != nil {
		return err
	}
	*f = flag(b)
	return nil
}

// parseFlag accepts true/false, 1/0, yes/no, on/off, t/f and y/n in any case.
func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("cannot use %q as a boolean", s)
}

type dockResponse struct {
	Score   float64        `json:"score"`
	Details map[string]any `json:"details"`
}

type targetsResponse struct {
	Targets []string `json:"targets"`
}

type healthResponse struct {
	Status  healthuc.Status                 `json:"status"`
	Checks  map[string]healthuc.CheckResult `json:"checks"`
	Version string                          `json:"version,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// DockPost handles POST / with a JSON body.
func (s *Server) DockPost(w http.ResponseWriter, r *http.Request) {
	var req dockRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	q, err := domain.NewQuery(deref(req.Target), deref(req.SMILES), req.ReturnMol != nil && bool(*req.ReturnMol))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	s.dock(w, r, q)
}

// DockGet handles GET /?target=..&smiles=..&return_mol=..
func (s *Server) DockGet(w http.ResponseWriter, r *http.Request) {
	var target, smiles, returnMol *string

	query := r.URL.Query()
	params := []struct {
		name string
		dst  any
	}{
		{"target", &target},
		{"smiles", &smiles},
		{"return_mol", &returnMol},
	}
	for _, p := range params {
		if err := runtime.BindQueryParameter("form", true, false, p.name, query, p.dst); err != nil {
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("invalid query parameter %s: %v", p.name, err))
			return
		}
	}

	var wantMol bool
	if returnMol != nil {
		b, err := parseFlag(*returnMol)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid query parameter return_mol: "+err.Error())
			return
		}
		wantMol = b
	}

	q, err := domain.NewQuery(deref(target), deref(smiles), wantMol)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	s.dock(w, r, q)
}

func (s *Server) dock(w http.ResponseWriter, r *http.Request, q domain.Query) {
	ctx, trace := r.Context(), domain.TraceFromContext(r.Context())
	if trace == nil {
		ctx, trace = domain.NewContextWithTrace(ctx)
	}

	res, err := s.docking.Dock(ctx, q)
	setTraceHeaders(w, trace)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dockResponse{Score: res.Score, Details: res.Details})
}

// ListTargets handles GET /targets.
func (s *Server) ListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.docking.Targets(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if targets == nil {
		targets = []string{}
	}
	writeJSON(w, http.StatusOK, targetsResponse{Targets: targets})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: report.Status,
		Checks: report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setTraceHeaders(w http.ResponseWriter, trace *domain.DockingTrace) {
	if trace == nil || !trace.CacheChecked {
		return
	}
	if trace.CacheHit {
		w.Header().Set(CacheHeader, "hit")
	} else {
		w.Header().Set(CacheHeader, "miss")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// dockingFailureHandler surfaces the engine's own failure description.
func dockingFailureHandler(w http.ResponseWriter, err error) bool {
	msg, ok := domain.DockingFailureMessage(err)
	if !ok {
		return false
	}
	writeDetail(w, http.StatusBadRequest, msg)
	return true
}

// messageHandler maps a sentinel to a status and reports the error text from the sentinel on.
func messageHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeDetail(w, status, messageFrom(err, sentinel))
		return true
	}
}

// messageFrom trims wrapping context that precedes the sentinel's own text.
func messageFrom(err error, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()); i > 0 {
		return msg[i:]
	}
	return msg
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Debug("request failed", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeDetail(w, http.StatusInternalServerError, "internal error")
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
