// Package persist writes finished conversations in the background.
package persist

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/campus-chat/internal/events"
	"github.com/capitalize-ai/campus-chat/internal/model"
	"github.com/capitalize-ai/campus-chat/internal/store"
	"github.com/capitalize-ai/campus-chat/pkg/logger"
	"github.com/capitalize-ai/campus-chat/pkg/metrics"
	"github.com/capitalize-ai/campus-chat/pkg/tracing"
)

// DefaultTimeout bounds a single write when none is configured.
const DefaultTimeout = 10 * time.Second

// Persister upserts conversations off the request path. A failed write is
// logged, counted and published as an event; it is never retried and never
// reaches the caller, whose stream has already completed.
type Persister struct {
	store   store.ConversationStore
	events  events.Publisher
	logger  *logger.Logger
	tracer  trace.Tracer
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     conc.WaitGroup
}

// New creates a persister. A nil publisher disables events.
func New(st store.ConversationStore, pub events.Publisher, log *logger.Logger, timeout time.Duration) *Persister {
	if pub == nil {
		pub = events.Nop{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Persister{
		store:   st,
		events:  pub,
		logger:  log.Named("persist"),
		tracer:  tracing.Tracer("campus-chat/persist"),
		timeout: timeout,
	}
}

// Submit schedules conv for writing and returns immediately. The write keeps
// ctx's values but not its cancellation. After Close, Submit writes inline.
func (p *Persister) Submit(ctx context.Context, conv *model.Conversation) {
	ctx = context.WithoutCancel(ctx)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.guardedWrite(ctx, conv)
		return
	}

	metrics.PersistInFlight.Inc()
	p.wg.Go(func() {
		defer metrics.PersistInFlight.Dec()
		p.guardedWrite(ctx, conv)
	})
}

// guardedWrite records a panicking write as a failed one, as soon as it
// happens.
func (p *Persister) guardedWrite(ctx context.Context, conv *model.Conversation) {
	var pc panics.Catcher
	pc.Try(func() { p.write(ctx, conv) })

	r := pc.Recovered()
	if r == nil {
		return
	}
	metrics.RecordPersist("error", 0)
	ev := events.New(model.EventTypePersistFailed, conv.UserID, conv.ID)
	ev.Reason = r.String()
	events.Emit(ctx, p.events, p.logger, ev)

	p.logger.Error("persist worker panicked",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", conv.UserID),
		zap.Error(r.AsError()),
		zap.ByteString("stack", r.Stack),
	)
}

// Wait blocks until every submitted write has finished.
func (p *Persister) Wait() {
	p.wg.Wait()
}

// Close stops accepting background writes and waits for in-flight ones.
func (p *Persister) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.Wait()
}

func (p *Persister) write(ctx context.Context, conv *model.Conversation) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ctx, span := p.tracer.Start(ctx, "persist.Upsert", trace.WithAttributes(
		attribute.String("conversation.id", conv.ID),
		attribute.Int("conversation.messages", len(conv.Messages)),
	))
	defer span.End()

	log := p.logger.With(
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", conv.UserID),
	)

	start := time.Now()
	err := p.store.Upsert(ctx, conv)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordPersist("error", elapsed.Seconds())
		log.Error("failed to persist conversation", zap.Error(err), zap.Duration("duration", elapsed))

		ev := events.New(model.EventTypePersistFailed, conv.UserID, conv.ID)
		ev.Reason = err.Error()
		events.Emit(ctx, p.events, log, ev)
		return
	}

	metrics.RecordPersist("success", elapsed.Seconds())
	log.Debug("conversation persisted", zap.Duration("duration", elapsed))

	ev := events.New(model.EventTypePersisted, conv.UserID, conv.ID)
	ev.Metadata = map[string]any{
		"messages": len(conv.Messages),
		"path":     conv.Path,
	}
	events.Emit(ctx, p.events, log, ev)
}
