// Package router turns WhatsApp webhook deliveries into handler calls.
//
// Each delivery is normalized, the sender resolved to an employee, checked
// against the processed-message log and the text cooldown, and then offered
// to the registered handlers in descending priority. The first handler that
// claims the event owns it; when none does, a fallback reply is sent.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/hrdesk/internal/channels"
	"github.com/nextlevelbuilder/hrdesk/internal/identity"
	"github.com/nextlevelbuilder/hrdesk/internal/logging"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

// User-facing replies sent by the router itself.
const (
	ReplyFallback     = "Sorry, I didn't understand that. Try saying 'Hi' for the menu!"
	ReplyUnauthorized = "Unauthorized access. Please contact HR."
	ReplyTryAgain     = "Something went wrong on our side. Please try again in a moment."
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultCooldown        = 5 * time.Second
	DefaultDedupTTL        = 10 * time.Minute
	DefaultConflictRetries = 2
)

// Outcome is the result of dispatching one delivery.
type Outcome uint8

const (
	OutcomeIgnored      Outcome = iota // status callback, self message or invalid sender
	OutcomeMalformed                   // payload could not be parsed
	OutcomeUnauthorized                // sender is not an employee
	OutcomeDuplicate                   // message id already processed
	OutcomeRateLimited                 // text inside the cooldown window
	OutcomeHandled                     // a handler claimed the event
	OutcomeFallback                    // no handler claimed it, fallback sent
	OutcomeFailed                      // a handler or the session store failed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeHandled:
		return "handled"
	case OutcomeFallback:
		return "fallback"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options wires the router's collaborators.
type Options struct {
	Directory identity.Directory
	Sessions  session.Store
	Processed session.ProcessedLog
	Messenger channels.Messenger

	BotNumber       string
	Cooldown        time.Duration
	DedupTTL        time.Duration
	ConflictRetries int

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Router dispatches events to handlers.
type Router struct {
	handlers        []Handler
	directory       identity.Directory
	sessions        session.Store
	processed       session.ProcessedLog
	out             channels.Messenger
	dedup           *Dedup
	botNumber       string
	cooldown        time.Duration
	conflictRetries int
	now             func() time.Time
	tracer          trace.Tracer
}

// New builds a router over an explicit handler list. It fails if a
// collaborator is missing or a flow does not have exactly one owner.
func New(opts Options, handlers ...Handler) (*Router, error) {
	if opts.Directory == nil || opts.Sessions == nil || opts.Processed == nil || opts.Messenger == nil {
		return nil, errors.New("router: directory, sessions, processed log and messenger are required")
	}
	if len(handlers) == 0 {
		return nil, errors.New("router: no handlers registered")
	}
	if err := checkFlowOwnership(handlers); err != nil {
		return nil, err
	}

	r := &Router{
		handlers:        sortHandlers(handlers),
		directory:       opts.Directory,
		sessions:        opts.Sessions,
		processed:       opts.Processed,
		out:             opts.Messenger,
		botNumber:       opts.BotNumber,
		cooldown:        opts.Cooldown,
		conflictRetries: opts.ConflictRetries,
		now:             opts.Now,
		tracer:          otel.Tracer("github.com/nextlevelbuilder/hrdesk/internal/router"),
	}
	if r.cooldown <= 0 {
		r.cooldown = DefaultCooldown
	}
	if r.conflictRetries <= 0 {
		r.conflictRetries = DefaultConflictRetries
	}
	if r.now == nil {
		r.now = time.Now
	}
	ttl := opts.DedupTTL
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	r.dedup = NewDedup(ttl)
	r.dedup.now = r.now

	names := make([]string, len(r.handlers))
	for i, h := range r.handlers {
		names[i] = fmt.Sprintf("%s(%d)", h.Name(), h.Priority())
	}
	slog.Info("router ready", "handlers", names)
	return r, nil
}

// Handlers returns the handlers in dispatch order.
func (r *Router) Handlers() []Handler {
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

// HandleWebhook normalizes a raw webhook body and dispatches it. The
// returned error is for logging only: the provider is acknowledged either way.
func (r *Router) HandleWebhook(ctx context.Context, body []byte) (Outcome, error) {
	ev, err := Normalize(body, r.botNumber)
	switch {
	case err == nil:
		return r.Dispatch(ctx, ev)
	case errors.Is(err, ErrNotMessage):
		return OutcomeIgnored, nil
	case errors.Is(err, ErrSelfMessage):
		slog.Debug("ignoring message from bot number")
		return OutcomeIgnored, nil
	case errors.Is(err, ErrInvalidSender):
		slog.Warn("dropping message with invalid sender id")
		return OutcomeIgnored, nil
	default:
		slog.Warn("dropping malformed webhook payload", "error", err)
		return OutcomeMalformed, err
	}
}

// Dispatch runs one normalized event through the pipeline.
func (r *Router) Dispatch(ctx context.Context, ev Event) (outcome Outcome, err error) {
	ctx, span := r.tracer.Start(ctx, "router.Dispatch", trace.WithAttributes(
		attribute.String("message.id", ev.MessageID),
		attribute.String("message.kind", ev.Kind.String()),
	))
	defer func() {
		span.SetAttributes(attribute.String("dispatch.outcome", outcome.String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome.String())
		}
		span.End()
	}()

	log := slog.With("sender_id", ev.SenderID, "message_id", ev.MessageID, "kind", ev.Kind.String())

	id, err := r.directory.Resolve(ctx, ev.SenderID)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			log.Error("directory lookup failed, treating sender as unknown", "error", err)
		}
		return r.reject(ctx, ev, log)
	}
	key := session.Key{TenantID: id.TenantID, SenderID: ev.SenderID}
	span.SetAttributes(attribute.String("tenant.id", id.TenantID))

	dedupKey := key.String() + ":" + ev.MessageID
	if !r.dedup.Claim(dedupKey) {
		log.Info("duplicate delivery ignored (in flight or recent)")
		return OutcomeDuplicate, nil
	}
	done, err := r.processed.IsProcessed(ctx, key, ev.MessageID)
	if err != nil {
		log.Warn("processed-log check failed, continuing", "error", err)
	} else if done {
		r.dedup.Done(dedupKey)
		log.Info("duplicate delivery ignored")
		return OutcomeDuplicate, nil
	}

	outcome, err = r.run(ctx, ev, id, key, log)
	if err != nil {
		r.dedup.Release(dedupKey)
		log.Error("dispatch failed", "outcome", outcome.String(), "error", err)
		return outcome, err
	}

	r.markProcessed(ctx, key, ev.MessageID, log)
	r.dedup.Done(dedupKey)
	log.Info("dispatched", "outcome", outcome.String())
	return outcome, nil
}

// reject answers an unknown sender once per message id.
func (r *Router) reject(ctx context.Context, ev Event, log *slog.Logger) (Outcome, error) {
	key := session.Key{SenderID: ev.SenderID}
	dedupKey := key.String() + ":" + ev.MessageID
	if !r.dedup.Claim(dedupKey) {
		return OutcomeDuplicate, nil
	}
	if done, err := r.processed.IsProcessed(ctx, key, ev.MessageID); err == nil && done {
		r.dedup.Done(dedupKey)
		return OutcomeDuplicate, nil
	}
	if err := r.out.SendText(ctx, ev.SenderID, ReplyUnauthorized); err != nil {
		log.Warn("failed to send unauthorized notice", "error", err)
	}
	r.markProcessed(ctx, key, ev.MessageID, log)
	r.dedup.Done(dedupKey)
	log.Info("rejected unknown sender")
	return OutcomeUnauthorized, nil
}

func (r *Router) markProcessed(ctx context.Context, key session.Key, messageID string, log *slog.Logger) {
	if err := r.processed.MarkProcessed(ctx, key, messageID, r.now()); err != nil {
		log.Warn("failed to record processed message", "error", err)
	}
}

// run loads state, applies the cooldown and offers the event to handlers.
// A session write conflict replays the turn on fresh state as long as
// nothing has been sent yet.
func (r *Router) run(ctx context.Context, ev Event, id identity.Identity, key session.Key, log *slog.Logger) (Outcome, error) {
	cooled := false
	for attempt := 0; ; attempt++ {
		st, err := r.sessions.Load(ctx, key)
		if err != nil {
			r.apologize(ctx, ev, log)
			return OutcomeFailed, fmt.Errorf("load session: %w", err)
		}

		if ev.Kind == KindText && !cooled {
			now := r.now()
			if !st.LastResponseTime.IsZero() && now.Sub(st.LastResponseTime) < r.cooldown {
				log.Warn("rate limit hit", "since_last", now.Sub(st.LastResponseTime).Round(time.Millisecond))
				return OutcomeRateLimited, nil
			}
			st.LastResponseTime = now
			if err := r.sessions.Save(ctx, key, st); err != nil {
				if errors.Is(err, session.ErrConflict) && attempt < r.conflictRetries {
					log.Debug("session conflict while stamping cooldown, retrying")
					continue
				}
				r.apologize(ctx, ev, log)
				return OutcomeFailed, fmt.Errorf("save session: %w", err)
			}
			cooled = true
		}

		t := &Turn{
			Event:    ev,
			Identity: id,
			Key:      key,
			State:    st,
			store:    r.sessions,
			sent:     new(atomic.Int32),
		}
		t.Out = countingMessenger{Messenger: r.out, n: t.sent}

		outcome, err := r.offer(ctx, t, log)
		if err == nil {
			return outcome, nil
		}
		if errors.Is(err, session.ErrConflict) {
			if t.Sent() == 0 && attempt < r.conflictRetries {
				log.Info("session changed concurrently, replaying turn", "attempt", attempt+1)
				continue
			}
			// Replaying now would repeat messages the user already has.
			log.Warn("session write lost to a concurrent update", "sent", t.Sent(), "error", err)
			return OutcomeHandled, nil
		}
		return outcome, err
	}
}

// offer walks the handler chain.
func (r *Router) offer(ctx context.Context, t *Turn, log *slog.Logger) (Outcome, error) {
	if t.Event.Kind == KindUnsupported {
		log.Info("unsupported message type", "type", t.Event.RawType)
		return OutcomeFallback, r.fallback(ctx, t, log)
	}

	for _, h := range r.handlers {
		if !h.Gate(t) {
			continue
		}
		claimed, err := r.invoke(ctx, h, t)
		if err != nil {
			if !errors.Is(err, session.ErrConflict) {
				r.apologize(ctx, t.Event, log)
			}
			return OutcomeFailed, fmt.Errorf("handler %s: %w", h.Name(), err)
		}
		if claimed {
			log.Debug("event claimed", "handler", h.Name(), "flow", t.State.Flow.String())
			return OutcomeHandled, nil
		}
	}
	return OutcomeFallback, r.fallback(ctx, t, log)
}

// invoke calls one handler, converting a panic into an error.
func (r *Router) invoke(ctx context.Context, h Handler, t *Turn) (claimed bool, err error) {
	ctx, span := r.tracer.Start(ctx, "handler."+h.Name())
	defer span.End()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("handler panic", "handler", h.Name(), "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", p)
		}
		span.SetAttributes(attribute.Bool("handler.claimed", claimed))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "handler failed")
		}
	}()

	switch t.Event.Kind {
	case KindInteractive:
		return h.HandleInteractive(ctx, t, t.Event.Selection)
	case KindText:
		return h.HandleText(ctx, t, t.Event.Text)
	}
	return false, nil
}

func (r *Router) fallback(ctx context.Context, t *Turn, log *slog.Logger) error {
	if err := t.Out.SendText(ctx, t.Sender(), ReplyFallback); err != nil {
		log.Warn("failed to send fallback", "error", err)
	}
	if t.Event.Kind == KindText {
		log.Debug("no handler claimed text", "text", logging.Truncate(t.Event.Text, 80))
	}
	return nil
}

func (r *Router) apologize(ctx context.Context, ev Event, log *slog.Logger) {
	if err := r.out.SendText(ctx, ev.SenderID, ReplyTryAgain); err != nil {
		log.Warn("failed to send apology", "error", err)
	}
}
