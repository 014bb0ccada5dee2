package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

const (
	defaultCheckTimeout   = 10 * time.Second
	defaultEngineCacheTTL = 5 * time.Second
)

// Config tunes the health checks. Zero values select the defaults.
type Config struct {
	CheckTimeout   time.Duration // limit for each component check
	EngineCacheTTL time.Duration // how long an engine check result is reused
}

// Service coordinates health checks.
type Service struct {
	db       DBPinger
	engine   EngineChecker
	timeout  time.Duration
	cacheTTL time.Duration
	now      func() time.Time

	engineGroup     singleflight.Group
	mu              sync.Mutex
	engineCheckedAt time.Time
	engineErr       error
}

// New creates a Service. Either dependency can be nil when not configured.
func New(db DBPinger, engine EngineChecker, cfg Config) *Service {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = defaultCheckTimeout
	}
	if cfg.EngineCacheTTL <= 0 {
		cfg.EngineCacheTTL = defaultEngineCacheTTL
	}
	return &Service{
		db:       db,
		engine:   engine,
		timeout:  cfg.CheckTimeout,
		cacheTTL: cfg.EngineCacheTTL,
		now:      time.Now,
	}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.db != nil {
		checks["database"] = result(s.pingDB(ctx))
	}
	if s.engine != nil {
		checks["engine"] = result(s.checkEngine(ctx))
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed > 0 && failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) pingDB(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.Ping(ctx)
}

// checkEngine reuses a recent result. Concurrent callers share one check,
// which runs detached from any single caller under the check timeout.
func (s *Service) checkEngine(ctx context.Context) error {
	s.mu.Lock()
	if !s.engineCheckedAt.IsZero() && s.now().Sub(s.engineCheckedAt) < s.cacheTTL {
		err := s.engineErr
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	ch := s.engineGroup.DoChan("engine", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		err := s.engine.HealthCheck(checkCtx)

		s.mu.Lock()
		s.engineCheckedAt = s.now()
		s.engineErr = err
		s.mu.Unlock()
		return nil, err
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
