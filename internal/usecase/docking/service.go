package docking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/dockapi/internal/domain"
	"github.com/kailas-cloud/dockapi/internal/logger"
	"github.com/kailas-cloud/dockapi/internal/metrics"
)

// Config tunes the docking service.
type Config struct {
	Driver        string        // metrics label: process, remote
	Timeout       time.Duration // per engine call, 0 = no limit
	MaxConcurrent int           // engine calls in flight, <= 0 means 1
}

// Service runs docking queries against the engine.
type Service struct {
	engine  Engine
	sem     *semaphore.Weighted
	driver  string
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a docking service.
func New(engine Engine, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Service{
		engine:  engine,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		driver:  cfg.Driver,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Dock loads the query's target, docks the molecule and applies the ligand policy.
// The timeout covers both the wait for an engine slot and the engine call.
// Engine failures come back as *domain.DockingError (errors.Is ErrDockingFailed).
func (s *Service) Dock(ctx context.Context, q domain.Query) (domain.DockingResult, error) {
	log := logger.FromContextOr(ctx, s.logger)

	engineCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	waitStart := time.Now()
	if err := s.sem.Acquire(engineCtx, 1); err != nil {
		if timedOut(ctx, engineCtx) {
			log.Warn("Docking timed out waiting for an engine slot",
				zap.String("target", q.Target),
				zap.Duration("timeout", s.timeout),
			)
			return domain.DockingResult{}, s.timeoutError()
		}
		return domain.DockingResult{}, fmt.Errorf("acquire engine slot: %w", err)
	}
	defer s.sem.Release(1)
	metrics.DockingQueueWait.Observe(time.Since(waitStart).Seconds())

	metrics.DockingInflight.Inc()
	defer metrics.DockingInflight.Dec()

	start := time.Now()
	out, err := s.run(engineCtx, q)
	duration := time.Since(start)

	domain.TraceFromContext(ctx).RecordEngineTime(duration)
	metrics.DockingDuration.WithLabelValues(s.driver).Observe(duration.Seconds())

	if err == nil {
		var res domain.DockingResult
		res, err = domain.NewDockingResult(out, q.ReturnMol)
		if err == nil {
			metrics.DockingRequestsTotal.WithLabelValues(s.driver, "success").Inc()
			log.Debug("Docking completed",
				zap.String("target", q.Target),
				zap.Int("smiles_len", len(q.SMILES)),
				zap.Float64("score", res.Score),
				zap.Duration("duration", duration),
			)
			return res, nil
		}
	}

	switch {
	case timedOut(ctx, engineCtx):
		log.Warn("Docking timed out",
			zap.String("target", q.Target),
			zap.Duration("timeout", s.timeout),
		)
		return domain.DockingResult{}, s.timeoutError()
	case errors.Is(err, domain.ErrDockingFailed):
		metrics.DockingRequestsTotal.WithLabelValues(s.driver, "failure").Inc()
		log.Warn("Docking failed",
			zap.String("target", q.Target),
			zap.String("smiles", q.SMILES),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.DockingResult{}, err
	default:
		metrics.DockingRequestsTotal.WithLabelValues(s.driver, "error").Inc()
		log.Error("Docking engine error",
			zap.String("target", q.Target),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.DockingResult{}, err
	}
}

// timedOut reports whether the service deadline fired while the caller was still waiting.
func timedOut(parent, engineCtx context.Context) bool {
	return errors.Is(engineCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil
}

func (s *Service) timeoutError() error {
	metrics.DockingRequestsTotal.WithLabelValues(s.driver, "timeout").Inc()
	return fmt.Errorf("%w after %s", domain.ErrDockingTimeout, s.timeout)
}

func (s *Service) run(ctx context.Context, q domain.Query) (domain.DockingOutput, error) {
	target, err := s.engine.LoadTarget(ctx, q.Target)
	if err != nil {
		return domain.DockingOutput{}, fmt.Errorf("load target %q: %w", q.Target, err)
	}
	out, err := target.Dock(ctx, q.SMILES)
	if err != nil {
		return domain.DockingOutput{}, fmt.Errorf("dock against %q: %w", q.Target, err)
	}
	return out, nil
}

// Targets lists the receptors known to the engine.
func (s *Service) Targets(ctx context.Context) ([]string, error) {
	lister, ok := s.engine.(domain.TargetLister)
	if !ok {
		return nil, domain.ErrTargetListingUnsupported
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	targets, err := lister.ListTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return targets, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
