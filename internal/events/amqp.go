package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"onthecheap/internal/logging"
	"onthecheap/internal/metrics"
)

// DefaultQueue receives every event when no queue is configured.
const DefaultQueue = "onthecheap.events"

const (
	defaultDialTimeout = 2 * time.Second
	defaultRedialDelay = 10 * time.Second
)

// ErrBrokerBackoff is returned without dialling while a recent connection
// failure is still within the redial delay.
var ErrBrokerBackoff = errors.New("broker unavailable, waiting before redial")

// AMQPPublisher publishes events as persistent JSON messages to a durable
// queue on the default exchange. The connection is opened lazily and
// re-dialled after the broker closes it.
type AMQPPublisher struct {
	url    string
	queue  string
	logger zerolog.Logger

	dialTimeout time.Duration
	redialDelay time.Duration
	now         func() time.Time

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	redialAt time.Time
}

// NewAMQPPublisher creates a publisher for the broker at url.
func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPPublisher{
		url:         url,
		queue:       queue,
		logger:      logging.WithComponent("events"),
		dialTimeout: defaultDialTimeout,
		redialDelay: defaultRedialDelay,
		now:         time.Now,
	}
}

// Publish implements Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) (err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.EventsPublishedTotal.WithLabelValues(string(ev.Type), result).Inc()
	}()

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channelLocked(ctx)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(ev.Type),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.resetLocked()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// channelLocked returns an open channel, dialling and declaring the queue
// when needed. The dial is bounded by the dial timeout and by ctx's
// deadline; after a failure no dial is attempted until the redial delay has
// passed. p.mu must be held.
func (p *AMQPPublisher) channelLocked(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()

	if p.now().Before(p.redialAt) {
		return nil, ErrBrokerBackoff
	}

	timeout := p.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("dial broker: %w", context.DeadlineExceeded)
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		p.redialAt = p.now().Add(p.redialDelay)
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.redialAt = p.now().Add(p.redialDelay)
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		p.redialAt = p.now().Add(p.redialDelay)
		return nil, fmt.Errorf("declare queue %s: %w", p.queue, err)
	}
	p.redialAt = time.Time{}

	p.logger.Info().Str("queue", p.queue).Msg("connected to broker")
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}
