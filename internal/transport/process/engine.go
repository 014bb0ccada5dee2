// Package process runs the docking engine as a subprocess per call.
// The bridge receives one JSON request on stdin and answers with one JSON reply on stdout.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/dockapi/internal/domain"
	"github.com/kailas-cloud/dockapi/internal/transport/wire"
)

const (
	catalogueRetryAfter  = time.Minute
	catalogueLoadTimeout = time.Minute
	stderrTailBytes      = 4096
)

var errCatalogueUnavailable = errors.New("target catalogue unavailable")

// Config holds the bridge settings.
type Config struct {
	Command []string // executable followed by its arguments
	WorkDir string
	Params  wire.DockParams
	Logger  *zap.Logger
}

// Engine is a domain.Engine backed by a bridge subprocess.
type Engine struct {
	name    string
	args    []string
	workDir string
	params  wire.DockParams
	exec    executor
	logger  *zap.Logger

	catalogueGroup singleflight.Group

	mu                sync.Mutex
	catalogue         map[string]struct{}
	targets           []string
	catalogueFailedAt time.Time
}

// NewEngine creates a process-backed docking engine.
func NewEngine(cfg Config) (*Engine, error) {
	return newEngine(cfg, &osExecutor{waitDelay: 5 * time.Second})
}

func newEngine(cfg Config, exec executor) (*Engine, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, errors.New("bridge command is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		name:    cfg.Command[0],
		args:    slices.Clone(cfg.Command[1:]),
		workDir: cfg.WorkDir,
		params:  cfg.Params,
		exec:    exec,
		logger:  logger,
	}, nil
}

// LoadTarget returns a handle for the named receptor.
// Names missing from a known catalogue are checked with the cheap load op instead of a docking run,
// so the rejection carries the engine's own message.
func (e *Engine) LoadTarget(ctx context.Context, name string) (domain.Target, error) {
	if e.knownTarget(ctx, name) {
		return &target{name: name, engine: e}, nil
	}

	reply, err := e.call(ctx, wire.Request{Op: wire.OpLoad, Target: name})
	if err != nil {
		return nil, fmt.Errorf("load target %s: %w", name, err)
	}
	if err := reply.Err(); err != nil {
		return nil, err
	}
	return &target{name: name, engine: e}, nil
}

// ListTargets returns the engine's receptor catalogue.
func (e *Engine) ListTargets(ctx context.Context) ([]string, error) {
	if err := e.loadCatalogue(ctx, false); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.targets), nil
}

// HealthCheck runs the bridge's ping op.
func (e *Engine) HealthCheck(ctx context.Context) error {
	reply, err := e.call(ctx, wire.Request{Op: wire.OpPing})
	if err != nil {
		return fmt.Errorf("ping bridge: %w", err)
	}
	if err := reply.Err(); err != nil {
		return fmt.Errorf("ping bridge: %w", err)
	}
	return nil
}

// knownTarget reports false only when the catalogue is loaded and lacks the name.
func (e *Engine) knownTarget(ctx context.Context, name string) bool {
	if err := e.loadCatalogue(ctx, true); err != nil {
		return true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.catalogue[strings.ToUpper(name)]
	return ok
}

// loadCatalogue makes sure the catalogue is loaded. Concurrent callers share one bridge run,
// which is detached from any single caller; each caller stops waiting when its own ctx ends.
// With honourBackoff a recent listing failure is returned without running the bridge.
func (e *Engine) loadCatalogue(ctx context.Context, honourBackoff bool) error {
	e.mu.Lock()
	loaded := e.catalogue != nil
	backoff := honourBackoff && !e.catalogueFailedAt.IsZero() && time.Since(e.catalogueFailedAt) < catalogueRetryAfter
	e.mu.Unlock()

	switch {
	case loaded:
		return nil
	case backoff:
		return errCatalogueUnavailable
	}

	ch := e.catalogueGroup.DoChan("catalogue", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), catalogueLoadTimeout)
		defer cancel()
		return nil, e.fetchCatalogue(loadCtx)
	})
	select {
	case <-ctx.Done():
		return fmt.Errorf("list targets: %w", ctx.Err())
	case res := <-ch:
		return res.Err
	}
}

func (e *Engine) fetchCatalogue(ctx context.Context) error {
	reply, err := e.call(ctx, wire.Request{Op: wire.OpTargets})
	if err == nil {
		err = reply.Err()
	}
	if err != nil {
		e.mu.Lock()
		e.catalogueFailedAt = time.Now()
		e.mu.Unlock()
		e.logger.Warn("Target catalogue unavailable, deferring to engine", zap.Error(err))
		return fmt.Errorf("list targets: %w", err)
	}

	catalogue := make(map[string]struct{}, len(reply.Targets))
	for _, t := range reply.Targets {
		catalogue[strings.ToUpper(t)] = struct{}{}
	}
	targets := slices.Clone(reply.Targets)
	slices.Sort(targets)

	e.mu.Lock()
	e.catalogue = catalogue
	e.targets = targets
	e.catalogueFailedAt = time.Time{}
	e.mu.Unlock()

	e.logger.Info("Target catalogue loaded", zap.Int("targets", len(targets)))
	return nil
}

// call runs the bridge once. A reply on stdout wins over the exit status.
func (e *Engine) call(ctx context.Context, req wire.Request) (wire.Reply, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return wire.Reply{}, fmt.Errorf("marshal bridge request: %w", err)
	}

	res, err := e.exec.Run(ctx, e.name, e.args, e.workDir, payload)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return wire.Reply{}, fmt.Errorf("bridge %s: %w", req.Op, ctxErr)
	}
	if err != nil {
		return wire.Reply{}, err
	}

	reply, decErr := wire.DecodeReply(lastLine(res.Stdout))
	if decErr == nil {
		return reply, nil
	}

	tail := stderrTail(res.Stderr)
	if res.ExitCode != 0 {
		e.logger.Debug("Bridge exited without reply",
			zap.String("op", req.Op),
			zap.Int("exit_code", res.ExitCode),
			zap.String("stderr", tail),
		)
		if msg := lastLineString(tail); msg != "" {
			return wire.Reply{}, domain.NewDockingError(msg)
		}
		return wire.Reply{}, domain.NewDockingError(
			fmt.Sprintf("docking engine exited with status %d", res.ExitCode))
	}

	return wire.Reply{}, fmt.Errorf("bridge %s: %w", req.Op, decErr)
}

type target struct {
	name   string
	engine *Engine
}

func (t *target) Name() string { return t.name }

// Dock runs the dock op for this target.
func (t *target) Dock(ctx context.Context, smiles string) (domain.DockingOutput, error) {
	reply, err := t.engine.call(ctx, wire.NewDockRequest(t.name, smiles, t.engine.params))
	if err != nil {
		return domain.DockingOutput{}, err
	}
	return reply.Output()
}

func lastLine(out []byte) []byte {
	out = bytes.TrimRight(out, " \t\r\n")
	if i := bytes.LastIndexByte(out, '\n'); i >= 0 {
		return out[i+1:]
	}
	return out
}

func lastLineString(s string) string {
	return strings.TrimSpace(string(lastLine([]byte(s))))
}

func stderrTail(stderr []byte) string {
	stderr = bytes.TrimSpace(stderr)
	if len(stderr) > stderrTailBytes {
		stderr = stderr[len(stderr)-stderrTailBytes:]
	}
	return string(stderr)
}
