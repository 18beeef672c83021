package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	catalogservice "github.com/smallbiznis/console/internal/catalog/service"
	"github.com/smallbiznis/console/internal/clock"
	"github.com/smallbiznis/console/internal/config"
	"github.com/smallbiznis/console/internal/editor"
	obsmetrics "github.com/smallbiznis/console/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultTTL = 30 * time.Minute

// Registry holds live sessions. A session is created on first request and
// evicted after it has been idle for the TTL or on explicit teardown.
type Registry struct {
	cache   *gocache.Cache
	ttl     time.Duration
	factory *catalogservice.Factory
	backend editor.Backend
	log     *zap.Logger
	metrics *obsmetrics.ConsoleMetrics
	clock   clock.Clock
}

type RegistryParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Factory   *catalogservice.Factory
	Backend   editor.Backend
	Log       *zap.Logger
	Metrics   *obsmetrics.ConsoleMetrics `optional:"true"`
}

func NewRegistry(p RegistryParams) *Registry {
	r := New(p.Factory, p.Backend, p.Config.Session.TTL, p.Log, p.Metrics)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			r.Close()
			return nil
		},
	})
	return r
}

func New(factory *catalogservice.Factory, backend editor.Backend, ttl time.Duration, log *zap.Logger, metrics *obsmetrics.ConsoleMetrics) *Registry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	r := &Registry{
		cache:   gocache.New(ttl, cleanup),
		ttl:     ttl,
		factory: factory,
		backend: backend,
		log:     log.Named("session"),
		metrics: metrics,
		clock:   clock.System{},
	}
	r.cache.OnEvicted(func(id string, _ interface{}) {
		r.metrics.SessionClosed()
		r.log.Debug("session closed", zap.String("session_id", id))
	})
	return r
}

// Get returns a live session and extends its idle deadline.
func (r *Registry) Get(id string) (*Session, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}
	value, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	sess := value.(*Session)
	r.cache.Set(id, sess, gocache.DefaultExpiration)
	return sess, true
}

// Acquire returns the session id names, or a new one when id is empty or
// no longer live. created reports whether a session was opened.
func (r *Registry) Acquire(id string) (sess *Session, created bool) {
	if sess, ok := r.Get(id); ok {
		return sess, false
	}
	sess = r.open()
	r.cache.SetDefault(sess.ID, sess)
	r.metrics.SessionOpened()
	r.log.Debug("session opened", zap.String("session_id", sess.ID))
	return sess, true
}

func (r *Registry) open() *Session {
	store := r.factory.NewStore()
	log := r.log
	return &Session{
		ID:            uuid.NewString(),
		CreatedAt:     r.clock.Now(),
		Store:         store,
		Editor:        editor.New(store, r.backend, log, r.metrics),
		Tracker:       NewTracker(),
		Notifications: NewNotifications(r.clock),
		log:           log,
		metrics:       r.metrics,
	}
}

// Teardown ends a session immediately.
func (r *Registry) Teardown(id string) bool {
	if _, ok := r.cache.Get(id); !ok {
		return false
	}
	r.cache.Delete(id)
	return true
}

// SetClock replaces the time source used for new sessions.
func (r *Registry) SetClock(c clock.Clock) {
	if c != nil {
		r.clock = c
	}
}

func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// Close drops every session.
func (r *Registry) Close() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}
