// Package audit records security-relevant events off the request path.
//
// Events flow through a bounded channel drained by a single worker. The
// channel never blocks a caller: when the buffer is full the event is dropped
// and a counter incremented. Audit is a secondary concern; a sink failure is
// logged and swallowed, never surfaced to the operation that emitted it.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abraham-of-london/circlegate/internal/gate/domain"
	"github.com/abraham-of-london/circlegate/pkg/idx"
)

const defaultBufferSize = 256

// Sink persists one audit event.
type Sink interface {
	Emit(ctx context.Context, event domain.AuditEvent) error
}

// NoOpSink discards every event. Used when auditing is disabled.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, domain.AuditEvent) error { return nil }

// Logger is the audit entry point handed to services.
type Logger struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time

	ch        chan domain.AuditEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// Option configures a Logger.
type Option func(*Logger)

// WithBufferSize overrides the event channel capacity.
func WithBufferSize(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.ch = make(chan domain.AuditEvent, n)
		}
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// NewLogger starts the dispatch worker. Callers must Close on shutdown to
// flush buffered events.
func NewLogger(sink Sink, logger *slog.Logger, opts ...Option) *Logger {
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Logger{
		sink:   sink,
		logger: logger,
		now:    time.Now,
		ch:     make(chan domain.AuditEvent, defaultBufferSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.wg.Add(1)
	go l.run()

	return l
}

func (l *Logger) run() {
	defer l.wg.Done()

	for {
		select {
		case event := <-l.ch:
			l.emit(event)
		case <-l.done:
			// Drain whatever is buffered before exiting.
			for {
				select {
				case event := <-l.ch:
					l.emit(event)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) emit(event domain.AuditEvent) {
	if err := l.sink.Emit(context.Background(), event); err != nil {
		l.logger.Warn("audit sink failed",
			"event", event.Event,
			"category", event.Category,
			"error", err,
		)
	}
}

// LogAuthEvent records an authentication-flow event (redemption, session
// resolution).
func (l *Logger) LogAuthEvent(event, actor string, success bool, ip, userAgent string, metadata map[string]string) {
	l.enqueue(domain.AuditCategoryAuth, event, actor, success, ip, userAgent, metadata)
}

// LogSecurityEvent records a security-relevant event (revocation, rate-limit
// trips, failed lookups).
func (l *Logger) LogSecurityEvent(event, actor string, success bool, ip, userAgent string, metadata map[string]string) {
	l.enqueue(domain.AuditCategorySecurity, event, actor, success, ip, userAgent, metadata)
}

// LogAdminEvent records an administrative action.
func (l *Logger) LogAdminEvent(event, actor string, success bool, ip, userAgent string, metadata map[string]string) {
	l.enqueue(domain.AuditCategoryAdmin, event, actor, success, ip, userAgent, metadata)
}

func (l *Logger) enqueue(category, event, actor string, success bool, ip, userAgent string, metadata map[string]string) {
	if l == nil || l.closed.Load() {
		return
	}

	e := domain.AuditEvent{
		ID:        idx.New().String(),
		Category:  category,
		Event:     event,
		Actor:     actor,
		Success:   success,
		IP:        ip,
		UserAgent: userAgent,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}

	select {
	case l.ch <- e:
	case <-l.done:
	default:
		l.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close stops accepting events, flushes the buffer and waits for the worker.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
		l.wg.Wait()
	})
}
