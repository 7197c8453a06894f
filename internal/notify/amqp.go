package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nextlevelbuilder/hrdesk/pkg/protocol"
)

// maxDialDelay caps the backoff between broker dial attempts.
const maxDialDelay = 60 * time.Second

// DialOptions configures DialWithRetry.
type DialOptions struct {
	URL      string
	Attempts int
	Delay    time.Duration
}

// DialWithRetry connects to the broker with exponential backoff, giving up
// early when ctx is cancelled.
func DialWithRetry(ctx context.Context, opts DialOptions) (*amqp.Connection, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	var lastErr error
	for i := 1; i <= opts.Attempts; i++ {
		conn, err := amqp.Dial(opts.URL)
		if err == nil {
			if i > 1 {
				slog.Info("amqp connected", "attempt", i)
			}
			return conn, nil
		}
		lastErr = err
		if i == opts.Attempts {
			break
		}

		sleep := opts.Delay << (i - 1)
		if sleep > maxDialDelay || sleep <= 0 {
			sleep = maxDialDelay
		}
		slog.Warn("amqp dial failed", "attempt", i, "sleep", sleep, "error", err)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("amqp dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("amqp: no connection after %d attempts: %w", opts.Attempts, lastErr)
}

// Publisher publishes envelopes to a topic exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, env protocol.Envelope) error
}

// AMQPPublisher publishes persistent JSON messages and waits for the
// broker's confirm.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
}

// NewAMQPPublisher declares the durable topic exchange on conn.
func NewAMQPPublisher(conn *amqp.Connection, exchange string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, env protocol.Envelope) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirms: %w", err)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     env.Meta.ID,
			CorrelationId: env.Meta.CorrelationID,
			Type:          env.Meta.Type,
			AppId:         env.Meta.Producer,
			Timestamp:     env.Meta.Time,
			Body:          body,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", routingKey, err)
	}
	if !acked {
		return errors.New("broker nacked " + routingKey)
	}
	slog.Info("event published", "key", routingKey, "exchange", p.exchange, "id", env.Meta.ID)
	return nil
}

// Close closes the connection.
func (p *AMQPPublisher) Close() error { return p.conn.Close() }

// Events turns reports into protocol envelopes on a Publisher.
type Events struct {
	pub Publisher
	now func() time.Time
}

// NewEvents wraps pub.
func NewEvents(pub Publisher) *Events {
	return &Events{pub: pub, now: time.Now}
}

func (e *Events) envelope(eventType, correlationID string, data any) protocol.Envelope {
	return protocol.Envelope{
		Meta: protocol.Meta{
			ID:            uuid.Must(uuid.NewV7()).String(),
			Type:          eventType,
			Time:          e.now().UTC(),
			Producer:      protocol.Producer,
			CorrelationID: correlationID,
		},
		Data: data,
	}
}

func employee(r FeedbackReport) protocol.Employee {
	return protocol.Employee{
		TenantID: r.Employee.TenantID,
		SenderID: r.Employee.SenderID,
		Name:     r.Employee.DisplayName,
		Role:     r.Employee.Role,
		Email:    r.Employee.Email,
	}
}

func (e *Events) Feedback(ctx context.Context, r FeedbackReport) error {
	verdict := protocol.VerdictNotHelpful
	if r.Helpful {
		verdict = protocol.VerdictHelpful
	}
	env := e.envelope(protocol.EventFeedbackSubmitted, r.MessageID, protocol.FeedbackSubmitted{
		Employee: employee(r),
		Query:    r.Query,
		Answer:   r.Answer,
		Verdict:  verdict,
		Comment:  r.Comment,
	})
	return e.pub.Publish(ctx, protocol.EventFeedbackSubmitted, env)
}

func (e *Events) HRTicket(ctx context.Context, t Ticket) error {
	urgency := t.Urgency
	if urgency == "" {
		urgency = protocol.UrgencyStandard
	}
	env := e.envelope(protocol.EventTicketOpened, t.MessageID, protocol.TicketOpened{
		Employee: employee(FeedbackReport{Employee: t.Employee}),
		Urgency:  urgency,
		Query:    t.Query,
	})
	return e.pub.Publish(ctx, protocol.EventTicketOpened, env)
}
