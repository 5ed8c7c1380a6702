package editor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"editbot/internal/eventbus"
	"editbot/internal/transport"
	logx "editbot/pkg/logx"
)

// Event types published on the bus.
const (
	// EventUpdate carries a transport.Update (reaction or callback) that a
	// pending delete affordance may be waiting for.
	EventUpdate = "transport.update"
	// EventResponded carries a RespondEvent.
	EventResponded = "editor.responded"
	// EventAffordance carries an AffordanceEvent when a watch ends.
	EventAffordance = "editor.affordance"
	// EventEvicted carries the number of entries trimmed from the cache.
	EventEvicted = "editor.evicted"
)

// Config holds the process-wide defaults.
type Config struct {
	CacheSize int
	// DeleteAffordance is the default specifier (see Resolver.Resolve).
	DeleteAffordance string
	UseButton        bool
	DeleteTimeout    time.Duration
	EditWindow       time.Duration
	DeleteDebounce   time.Duration
}

func (c Config) withDefaults() Config {
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.DeleteTimeout <= 0 {
		c.DeleteTimeout = 120 * time.Second
	}
	if c.EditWindow <= 0 {
		c.EditWindow = 3 * time.Second
	}
	if c.DeleteDebounce <= 0 {
		c.DeleteDebounce = time.Second
	}
	return c
}

// Spawner runs detached background work. *supervisor.Supervisor satisfies it.
type Spawner interface {
	Go0(name string, fn func(ctx context.Context))
}

// Service owns the response cache and answers requests through a messenger.
// One Service is shared by every request context.
type Service struct {
	msgr    transport.Messenger
	reactor transport.Reactor // nil when unsupported
	fetcher transport.Fetcher // nil when unsupported

	cache    *Cache
	resolver *Resolver
	bus      eventbus.Bus
	spawn    Spawner
	log      logx.Logger

	cfg atomic.Pointer[Config]
	now func() time.Time

	watchMu sync.Mutex
	watches map[transport.MessageRef]*watch
}

type Deps struct {
	Messenger transport.Messenger
	Bus       eventbus.Bus
	Spawner   Spawner
	Logger    logx.Logger
}

func New(cfg Config, d Deps) *Service {
	cfg = cfg.withDefaults()
	log := d.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	bus := d.Bus
	if bus == nil {
		bus = eventbus.New()
	}
	s := &Service{
		msgr:    d.Messenger,
		cache:   NewCache(cfg.CacheSize),
		bus:     bus,
		spawn:   d.Spawner,
		log:     log.With(logx.String("comp", "editor")),
		now:     time.Now,
		watches: make(map[transport.MessageRef]*watch),
	}
	if r, ok := d.Messenger.(transport.Reactor); ok {
		s.reactor = r
	}
	if f, ok := d.Messenger.(transport.Fetcher); ok {
		s.fetcher = f
	}
	var reg transport.EmojiRegistry
	if r, ok := d.Messenger.(transport.EmojiRegistry); ok {
		reg = r
	}
	s.resolver = NewResolver(reg, s.log)
	s.cfg.Store(&cfg)
	s.cache.OnEvict(func(n int) {
		s.bus.Publish(eventbus.Event{Type: EventEvicted, Data: n})
	})
	return s
}

// Apply swaps the defaults at runtime. A changed cache size takes effect on
// the next insertion.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.cfg.Store(&cfg)
	s.cache.Resize(cfg.CacheSize)
}

func (s *Service) Config() Config { return *s.cfg.Load() }

func (s *Service) Cache() *Cache { return s.cache }

func (s *Service) Bus() eventbus.Bus { return s.bus }

func (s *Service) go0(name string, fn func(ctx context.Context)) {
	if s.spawn != nil {
		s.spawn.Go0(name, fn)
		return
	}
	go fn(context.Background())
}
