// Package logging is the entry point applications log through.
//
// A Dispatcher owns the active configuration as an immutable snapshot behind
// an atomic pointer. Each emission pins the snapshot it started with, so a
// reload never drops an in-flight record; the previous snapshot's appenders
// are closed once its last emission returns.
package logging

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leeforge/logroute/appender"
	"github.com/leeforge/logroute/config"
	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/metrics"
	"github.com/leeforge/logroute/record"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrShutdown is returned by Reload after Shutdown.
var ErrShutdown = errors.New(errors.ErrorTypeInternal, "dispatcher is shut down").WithCode("dispatcher_shutdown")

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStatusLogger replaces the side channel that receives runtime failures.
func WithStatusLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.status = l
		}
	}
}

// WithMetrics records counters into c.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.metrics = c
		}
	}
}

// WithHooks adds hooks run for each accepted record.
func WithHooks(hooks ...Hook) Option {
	return func(d *Dispatcher) {
		d.hooks = append(d.hooks, hooks...)
	}
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithCaller captures the calling file, line and function for each record.
func WithCaller(enabled bool) Option {
	return func(d *Dispatcher) {
		d.addCaller = enabled
	}
}

// WithOutput redirects console appenders. Nil keeps the process stream.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(d *Dispatcher) {
		d.builder.stdout = stdout
		d.builder.stderr = stderr
	}
}

// WithRouteCacheSize bounds the number of cached logger routes per configuration.
func WithRouteCacheSize(n int) Option {
	return func(d *Dispatcher) {
		d.builder.cacheSize = n
	}
}

// Dispatcher routes records to appenders according to the active configuration.
type Dispatcher struct {
	current    atomic.Pointer[snapshot]
	generation atomic.Uint64
	closed     atomic.Bool

	builder   builder
	status    *zap.Logger
	metrics   *metrics.Collector
	hooks     []Hook
	now       func() time.Time
	addCaller bool

	reloadMu sync.Mutex
	watcher  *config.Watcher
	loggers  sync.Map // map[string]*logger
}

// New builds a dispatcher from cfg. A configuration error is returned as is
// and nothing is left open.
func New(cfg *config.Config, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		status:  NewStatusLogger(),
		metrics: metrics.NewCollector(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.builder.onError = d.reportAppender

	d.builder.coldStart = true
	s, err := d.builder.build(d.generation.Add(1), cfg)
	d.builder.coldStart = false
	if err != nil {
		return nil, err
	}
	d.install(s)
	return d, nil
}

func (d *Dispatcher) install(s *snapshot) *snapshot {
	s.onClose = d.reportAppender
	d.metrics.SetActiveAppenders(len(s.appenders))
	return d.current.Swap(s)
}

// acquire pins the current snapshot. It retries when a reload retired the
// snapshot between the load and the increment.
func (d *Dispatcher) acquire() *snapshot {
	for {
		s := d.current.Load()
		if s == nil {
			return nil
		}
		if s.tryAcquire() {
			return s
		}
		runtime.Gosched()
	}
}

// Log emits msg for the named logger. It never panics and never blocks on
// anything but the appenders' own I/O.
func (d *Dispatcher) Log(name string, level record.Level, msg string, fields ...zap.Field) {
	d.emit(1, name, level, msg, nil, fields)
}

// Enabled reports whether a record at level from name would be written.
func (d *Dispatcher) Enabled(name string, level record.Level) bool {
	s := d.acquire()
	if s == nil {
		return false
	}
	defer s.release()
	r := s.resolve(name)
	return len(r.appenders) > 0 && r.level.Enabled(level)
}

// emit is the hot path. skip counts the frames between emit and the
// application call site, used only when caller capture is on.
func (d *Dispatcher) emit(skip int, name string, level record.Level, msg string, prefix, fields []zap.Field) {
	s := d.acquire()
	if s == nil {
		return
	}
	defer s.release()

	rt := s.resolve(name)
	if !rt.level.Enabled(level) || len(rt.appenders) == 0 {
		d.metrics.RecordDropped()
		return
	}

	rec := &record.Record{
		Time:    d.now(),
		Level:   level,
		Logger:  rt.logger,
		Message: msg,
		Fields:  joinFields(prefix, fields),
	}
	if d.addCaller {
		rec.Caller = captureCaller(skip + 2)
	}
	d.dispatch(s, rt, rec)
}

// emitEntry writes a record built by zap, which already resolved the caller.
func (d *Dispatcher) emitEntry(name string, ent zapcore.Entry, prefix, fields []zap.Field) {
	s := d.acquire()
	if s == nil {
		return
	}
	defer s.release()

	level := record.FromZapLevel(ent.Level)
	rt := s.resolve(name)
	if !rt.level.Enabled(level) || len(rt.appenders) == 0 {
		d.metrics.RecordDropped()
		return
	}

	t := ent.Time
	if t.IsZero() {
		t = d.now()
	}
	rec := &record.Record{
		Time:    t,
		Level:   level,
		Logger:  rt.logger,
		Message: ent.Message,
		Fields:  joinFields(prefix, fields),
	}
	if d.addCaller {
		rec.Caller = ent.Caller
	}
	d.dispatch(s, rt, rec)
}

func (d *Dispatcher) dispatch(s *snapshot, rt route, rec *record.Record) {
	if len(d.hooks) > 0 {
		d.runHooks(rec)
	}
	for _, a := range rt.appenders {
		if s.isDead(a.Name()) {
			continue
		}
		if err := safeAppend(a, rec); err != nil {
			if errors.IsFatal(err) && !s.markDead(a.Name()) {
				continue
			}
			d.reportAppender(a.Name(), err)
		}
	}
	d.metrics.RecordEmitted()
}

func safeAppend(a appender.Appender, rec *record.Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.NewAppender(a.Name(), fmt.Errorf("panic: %v", p)).WithFatal()
		}
	}()
	return a.Append(rec)
}

// reportAppender is the side channel for appender and rotation failures.
func (d *Dispatcher) reportAppender(name string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, errors.ErrRotation) {
		d.metrics.RecordRotationFailure(name)
		d.status.Warn("log rotation failed, appending to the active file",
			zap.String("appender", name),
			zap.Error(err),
		)
		return
	}

	d.metrics.RecordAppenderError(name)
	if errors.IsFatal(err) {
		d.status.Error("appender disabled", zap.String("appender", name), zap.Error(err))
		return
	}
	d.status.Warn("appender write failed", zap.String("appender", name), zap.Error(err))
}

func joinFields(prefix, fields []zap.Field) []zap.Field {
	if len(prefix) == 0 && len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(prefix)+len(fields))
	out = append(out, prefix...)
	return append(out, fields...)
}

func captureCaller(skip int) zapcore.EntryCaller {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return zapcore.EntryCaller{}
	}
	caller := zapcore.NewEntryCaller(pc, file, line, ok)
	if fn := runtime.FuncForPC(pc); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}

// Flush flushes every appender of the current configuration.
func (d *Dispatcher) Flush() error {
	s := d.acquire()
	if s == nil {
		return nil
	}
	defer s.release()

	var errs []error
	for _, name := range s.order {
		if err := s.appenders[name].Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the active configuration. It must not be modified.
func (d *Dispatcher) Config() *config.Config {
	s := d.acquire()
	if s == nil {
		return nil
	}
	defer s.release()
	return s.cfg
}

// Generation counts successful configuration loads, starting at 1.
func (d *Dispatcher) Generation() uint64 {
	s := d.acquire()
	if s == nil {
		return 0
	}
	defer s.release()
	return s.generation
}

// Metrics returns the dispatcher's counters.
func (d *Dispatcher) Metrics() *metrics.Collector {
	return d.metrics
}

// Reload builds a new configuration off to the side and swaps it in. On any
// error the previous configuration stays active.
func (d *Dispatcher) Reload(cfg *config.Config) error {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()

	if d.closed.Load() {
		return ErrShutdown
	}

	s, err := d.builder.build(d.generation.Load()+1, cfg)
	d.metrics.RecordReload(err)
	if err != nil {
		d.status.Error("configuration reload rejected, keeping the previous configuration", zap.Error(err))
		return err
	}
	d.generation.Store(s.generation)

	if old := d.install(s); old != nil {
		old.release()
	}
	d.status.Info("configuration reloaded", zap.Uint64("generation", s.generation))
	return nil
}

// Watch reloads from load whenever one of files changes or, with a positive
// interval, when polling notices a new modification time.
func (d *Dispatcher) Watch(files []string, interval time.Duration, load func() (*config.Config, error)) error {
	d.reloadMu.Lock()
	if d.closed.Load() {
		d.reloadMu.Unlock()
		return ErrShutdown
	}
	if d.watcher != nil {
		d.reloadMu.Unlock()
		return errors.New(errors.ErrorTypeInternal, "dispatcher is already watching")
	}
	w := config.NewWatcher(config.WatcherOptions{
		Files:    files,
		Interval: interval,
		Logger:   d.status,
		OnChange: func() {
			cfg, err := load()
			if err != nil {
				d.metrics.RecordReload(err)
				d.status.Error("configuration reload failed, keeping the previous configuration", zap.Error(err))
				return
			}
			_ = d.Reload(cfg)
		},
	})
	d.watcher = w
	d.reloadMu.Unlock()

	return w.Start()
}

// Shutdown stops watching, retires the active configuration and waits until
// every appender has been flushed and closed, or ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	d.reloadMu.Lock()
	w := d.watcher
	d.watcher = nil
	d.reloadMu.Unlock()
	if w != nil {
		w.Stop()
	}

	d.reloadMu.Lock()
	old := d.current.Swap(nil)
	d.reloadMu.Unlock()
	if old == nil {
		return nil
	}
	old.release()

	select {
	case <-old.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
