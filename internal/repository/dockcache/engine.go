package dockcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dockapi/internal/db"
	"github.com/kailas-cloud/dockapi/internal/domain"
)

const entryVersion = 1

// store is the consumer interface for the docking cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config holds cache tuning.
type Config struct {
	KeyPrefix string
	TTL       time.Duration
	// PH and Seed are the engine settings that change scores and poses; both are part of every key.
	PH   float64
	Seed int64
}

// CachedEngine caches successful docking outputs in a key-value store.
// Failures are never cached.
type CachedEngine struct {
	inner      domain.Engine
	store      store
	prefix     string
	params     string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Engine,
	s store,
	cfg Config,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEngine {
	return &CachedEngine{
		inner:      inner,
		store:      s,
		prefix:     cfg.KeyPrefix + "dock_cache:",
		params:     strconv.FormatFloat(cfg.PH, 'g', -1, 64) + "\x00" + strconv.FormatInt(cfg.Seed, 10),
		ttl:        cfg.TTL,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// LoadTarget loads the target from the inner engine and wraps it with the cache.
func (c *CachedEngine) LoadTarget(ctx context.Context, name string) (domain.Target, error) {
	t, err := c.inner.LoadTarget(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	return &cachedTarget{inner: t, engine: c}, nil
}

// ListTargets delegates to the inner engine when it supports listing.
func (c *CachedEngine) ListTargets(ctx context.Context) ([]string, error) {
	lister, ok := c.inner.(domain.TargetLister)
	if !ok {
		return nil, domain.ErrTargetListingUnsupported
	}
	targets, err := lister.ListTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return targets, nil
}

// HealthCheck delegates to the inner engine when it supports health checks.
func (c *CachedEngine) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("engine health: %w", err)
		}
	}
	return nil
}

type cachedTarget struct {
	inner  domain.Target
	engine *CachedEngine
}

func (t *cachedTarget) Name() string { return t.inner.Name() }

// Dock returns a cached output or calls the inner target.
func (t *cachedTarget) Dock(ctx context.Context, smiles string) (domain.DockingOutput, error) {
	c := t.engine
	key := c.cacheKey(t.inner.Name(), smiles)
	trace := domain.TraceFromContext(ctx)

	if out, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		trace.RecordCache(true)
		return out, nil
	}

	c.incCache("miss")
	trace.RecordCache(false)

	out, err := t.inner.Dock(ctx, smiles)
	if err != nil {
		return domain.DockingOutput{}, fmt.Errorf("dock: %w", err)
	}

	c.putToCache(ctx, key, out)
	return out, nil
}

func (c *CachedEngine) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEngine) cacheKey(target, smiles string) string {
	h := sha256.New()
	h.Write([]byte(target))
	h.Write([]byte{0})
	h.Write([]byte(smiles))
	h.Write([]byte{0})
	h.Write([]byte(c.params))
	return c.prefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEngine) getFromCache(ctx context.Context, key string) (domain.DockingOutput, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached docking result", zap.String("key", key), zap.Error(err))
		}
		return domain.DockingOutput{}, false
	}
	if len(data) == 0 {
		return domain.DockingOutput{}, false
	}

	out, err := decodeEntry(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached docking result", zap.String("key", key), zap.Error(err))
		return domain.DockingOutput{}, false
	}

	return out, true
}

func (c *CachedEngine) putToCache(ctx context.Context, key string, out domain.DockingOutput) {
	data, err := encodeEntry(out)
	if err != nil {
		c.logger.Warn("Failed to encode docking result for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache docking result", zap.String("key", key), zap.Error(err))
	}
}

type cacheEntry struct {
	Version int            `json:"v"`
	Score   float64        `json:"score"`
	Details map[string]any `json:"details"`
	Pose    cachePose      `json:"pose"`
}

type cachePose struct {
	Format string `json:"format"`
	Data   string `json:"data"`
}

func encodeEntry(out domain.DockingOutput) ([]byte, error) {
	data, err := json.Marshal(cacheEntry{
		Version: entryVersion,
		Score:   out.Score,
		Details: out.Details,
		Pose:    cachePose{Format: string(out.Pose.Format), Data: out.Pose.Data},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal cache entry: %w", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (domain.DockingOutput, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var e cacheEntry
	if err := dec.Decode(&e); err != nil {
		return domain.DockingOutput{}, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	if e.Version != entryVersion {
		return domain.DockingOutput{}, fmt.Errorf("unsupported cache entry version %d", e.Version)
	}

	return domain.DockingOutput{
		Score:   e.Score,
		Details: e.Details,
		Pose:    domain.Pose{Format: domain.PoseFormat(e.Pose.Format), Data: e.Pose.Data},
	}, nil
}
