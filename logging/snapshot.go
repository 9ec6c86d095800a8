package logging

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/leeforge/logroute/appender"
	"github.com/leeforge/logroute/config"
	"github.com/leeforge/logroute/record"
	"github.com/leeforge/logroute/registry"
	"golang.org/x/sync/errgroup"
)

// DefaultRouteCacheSize bounds the per-snapshot route cache.
const DefaultRouteCacheSize = 1024

// route is a resolved logger: its level and the appender instances it writes to.
type route struct {
	logger    string
	level     record.Level
	appenders []appender.Appender
}

// snapshot is one immutable configuration generation. It holds one reference
// while current and one per in-flight emission; the last release closes its
// appenders.
type snapshot struct {
	generation uint64
	cfg        *config.Config
	registry   *registry.Registry
	appenders  map[string]appender.Appender
	order      []string
	routes     *lru.Cache[string, route]

	// dead holds appenders that failed fatally; they are skipped and reported once.
	dead sync.Map

	refs    atomic.Int64
	done    chan struct{}
	onClose func(name string, err error)
}

func newSnapshot(generation uint64, cfg *config.Config, reg *registry.Registry, appenders map[string]appender.Appender, order []string, cacheSize int) (*snapshot, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultRouteCacheSize
	}
	routes, err := lru.New[string, route](cacheSize)
	if err != nil {
		return nil, err
	}

	s := &snapshot{
		generation: generation,
		cfg:        cfg,
		registry:   reg,
		appenders:  appenders,
		order:      order,
		routes:     routes,
		done:       make(chan struct{}),
	}
	s.refs.Store(1)
	return s, nil
}

// tryAcquire takes a reference unless the snapshot is already being torn down.
func (s *snapshot) tryAcquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops a reference; the last one closes every appender.
func (s *snapshot) release() {
	if s.refs.Add(-1) == 0 {
		s.close()
	}
}

// close closes all appenders in parallel and then signals done.
func (s *snapshot) close() {
	defer close(s.done)

	var g errgroup.Group
	for _, name := range s.order {
		a := s.appenders[name]
		g.Go(func() error {
			err := a.Close()
			if err != nil && s.onClose != nil {
				s.onClose(name, err)
			}
			return err
		})
	}
	_ = g.Wait()
}

// resolve returns the cached route for name.
func (s *snapshot) resolve(name string) route {
	if r, ok := s.routes.Get(name); ok {
		return r
	}

	resolved := s.registry.Resolve(name)
	r := route{
		logger:    resolved.Logger,
		level:     resolved.Level,
		appenders: make([]appender.Appender, 0, len(resolved.Appenders)),
	}
	for _, ref := range resolved.Appenders {
		if a, ok := s.appenders[ref]; ok {
			r.appenders = append(r.appenders, a)
		}
	}
	s.routes.Add(name, r)
	return r
}

// markDead records a fatal appender failure; it reports whether this was the first.
func (s *snapshot) markDead(name string) bool {
	_, loaded := s.dead.LoadOrStore(name, struct{}{})
	return !loaded
}

func (s *snapshot) isDead(name string) bool {
	_, ok := s.dead.Load(name)
	return ok
}
