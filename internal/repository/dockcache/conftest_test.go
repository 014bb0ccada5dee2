package dockcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dockapi/internal/db"
	"github.com/kailas-cloud/dockapi/internal/domain"
)

type mockTarget struct {
	name  string
	out   domain.DockingOutput
	err   error
	calls int
}

func (m *mockTarget) Name() string { return m.name }

func (m *mockTarget) Dock(_ context.Context, _ string) (domain.DockingOutput, error) {
	m.calls++
	return m.out, m.err
}

type mockEngine struct {
	target  *mockTarget
	loadErr error
	targets []string
}

func (m *mockEngine) LoadTarget(_ context.Context, name string) (domain.Target, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	m.target.name = name
	return m.target, nil
}

// listingEngine also implements domain.TargetLister and domain.HealthChecker.
type listingEngine struct {
	mockEngine
	healthErr error
}

func (m *listingEngine) ListTargets(_ context.Context) ([]string, error) {
	return m.targets, nil
}

func (m *listingEngine) HealthCheck(_ context.Context) error {
	return m.healthErr
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedEngine(t *testing.T, inner domain.Engine) (*CachedEngine, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, Config{KeyPrefix: "test:", TTL: time.Hour}, nil, zap.NewNop())
	return ce, ms
}
