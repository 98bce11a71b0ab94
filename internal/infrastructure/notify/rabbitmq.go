package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

const (
	DefaultExchange = "city.events"

	RoutingKeyDeletionRequested = "identity.account.deletion.requested"

	// Minimum window to wait for Return / Confirm.
	publishWait = 150 * time.Millisecond
	// A mandatory Return, when there is one, arrives before the Ack.
	returnGrace = 25 * time.Millisecond
)

// DeletionRequestedEvent is consumed by the email service, which renders
// and sends the message.
type DeletionRequestedEvent struct {
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at"`
	RequestedAt time.Time `json:"requested_at"`
}

// RabbitNotifier publishes deletion links to a topic exchange with
// publisher confirms and mandatory routing.
type RabbitNotifier struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

var _ auth.DeletionNotifier = (*RabbitNotifier)(nil)

func NewRabbitNotifier(url, exchange string) (*RabbitNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: rabbitmq url is required", ErrInvalidConfig)
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &RabbitNotifier{
		url:      url,
		exchange: exchange,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RabbitNotifier) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetConn()
	return nil
}

func (p *RabbitNotifier) SendDeletionLink(ctx context.Context, msg auth.DeletionEmail) error {
	evt := DeletionRequestedEvent{
		Email:       msg.To,
		Name:        msg.Name,
		URL:         msg.Link,
		ExpiresAt:   msg.ExpiresAt.UTC(),
		RequestedAt: time.Now().UTC(),
	}
	if err := p.publishJSON(ctx, RoutingKeyDeletionRequested, evt); err != nil {
		return domain.ErrRabbitUnavailable(err)
	}
	return nil
}

// ---- internal ----

func (p *RabbitNotifier) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	// Declare topic exchange (idempotent).
	if err := ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("exchange declare: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("confirm mode: %w", err)
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))

	p.conn = conn
	p.ch = ch
	return nil
}

func (p *RabbitNotifier) ensureConnected() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil {
		return nil
	}
	return p.connect()
}

func (p *RabbitNotifier) publishJSON(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	// Ensure there is a deadline to avoid blocking forever.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnected(); err != nil {
		return err
	}

	// Drain stale confirm / return messages so results don't mix.
drain:
	for {
		select {
		case <-p.confirmCh:
		case <-p.returnCh:
		default:
			break drain
		}
	}

	if err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	); err != nil {
		p.resetConn()
		return fmt.Errorf("publish failed: %w", err)
	}

	select {
	case ret := <-p.returnCh:
		// no queue bound for this routing key
		return fmt.Errorf("rabbitmq unroutable: key=%s code=%d text=%s", routingKey, ret.ReplyCode, ret.ReplyText)

	case conf := <-p.confirmCh:
		select {
		case ret := <-p.returnCh:
			return fmt.Errorf("rabbitmq unroutable: key=%s code=%d text=%s", routingKey, ret.ReplyCode, ret.ReplyText)
		case <-time.After(returnGrace):
		}
		if !conf.Ack {
			return fmt.Errorf("rabbitmq nack: key=%s deliveryTag=%d", routingKey, conf.DeliveryTag)
		}
		return nil

	case <-time.After(publishWait):
		return fmt.Errorf("rabbitmq publish timeout: key=%s", routingKey)

	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *RabbitNotifier) resetConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
