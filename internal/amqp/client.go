// Package amqp publishes ledger mutations to RabbitMQ and consumes them
// back for the events command.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"finboard/internal/ledger"
	applog "finboard/internal/log"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
	publishTimeout   = 5 * time.Second
	dialTimeout      = 5 * time.Second
	heartbeat        = 10 * time.Second
	maxBackoff       = 30 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Client owns one connection and channel to the broker and redials lazily
// after the broker drops them. The exchange is direct and the queue name
// doubles as routing key.
type Client struct {
	url      string
	exchange string
	queue    string
	logger   *applog.Logger
	breaker  *breaker
	dialWait time.Duration

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewClient dials the broker and declares the exchange, queue and binding.
func NewClient(url, exchange, queue string, logger *applog.Logger) (*Client, error) {
	c := newClient(url, exchange, queue, logger)
	if _, err := c.ensureChannel(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(url, exchange, queue string, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.Default()
	}
	return &Client{
		url:      url,
		exchange: exchange,
		queue:    queue,
		logger:   logger.WithComponent(applog.ComponentAMQP),
		breaker:  newBreaker(breakerThreshold, breakerCooldown),
		dialWait: dialTimeout,
	}
}

// ensureChannel returns the open channel, dialing again when the broker
// dropped it. Connecting and the AMQP handshake together end at ctx's
// deadline or after dialWait, whichever comes first.
func (c *Client) ensureChannel(ctx context.Context) (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.dropLocked()

	conn, err := amqp091.DialConfig(c.url, amqp091.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      c.dialer(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err == nil {
		err = c.declare(ch)
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("prepare channel: %w", err)
	}
	c.conn, c.channel = conn, ch
	return ch, nil
}

// dialer connects under ctx and leaves a deadline on the socket for the
// handshake; amqp091 clears it once the connection is open.
func (c *Client) dialer(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		ctx, cancel := context.WithTimeout(ctx, c.dialWait)
		defer cancel()
		conn, err := (&net.Dialer{}).DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline, _ := ctx.Deadline()
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func (c *Client) declare(ch *amqp091.Channel) error {
	const durable, autoDelete, internal, exclusive, noWait = true, false, false, false, false

	if err := ch.ExchangeDeclare(c.exchange, amqp091.ExchangeDirect, durable, autoDelete, internal, noWait, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.exchange, err)
	}
	if _, err := ch.QueueDeclare(c.queue, durable, autoDelete, exclusive, noWait, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := ch.QueueBind(c.queue, c.queue, c.exchange, noWait, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", c.queue, err)
	}
	return nil
}

// PublishLedgerEvent publishes one ledger mutation as a persistent JSON
// message. It fails fast with ErrCircuitOpen while the broker is failing.
func (c *Client) PublishLedgerEvent(ctx context.Context, ev ledger.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.breaker.allow() {
		return fmt.Errorf("publish ledger event: %w", ErrCircuitOpen)
	}

	msg := NewLedgerEventMessage(ev)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, msg, body); err != nil {
		if c.breaker.failure() {
			c.logger.WarnContext(ctx, "Circuit breaker opened", applog.FieldError, err)
		}
		return err
	}
	c.breaker.success()

	c.logger.DebugContext(ctx, "Published ledger event",
		applog.FieldOperation, applog.OpPublish,
		"type", msg.Type,
		applog.FieldTransactionID, msg.TransactionID,
		applog.FieldRevision, msg.Revision)
	return nil
}

func (c *Client) publish(ctx context.Context, msg *LedgerEventMessage, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ch, err := c.ensureChannel(ctx)
	if err != nil {
		return err
	}

	const mandatory, immediate = false, false
	err = ch.PublishWithContext(ctx, c.exchange, c.queue, mandatory, immediate, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    msg.Timestamp,
		Type:         msg.Type,
		Body:         body,
	})
	if err != nil {
		if isConnectionError(err) {
			c.mu.Lock()
			c.dropLocked()
			c.mu.Unlock()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// ConsumeLedgerEvents feeds every message on the queue to handler until ctx
// is done. Lost connections are redialed with exponential backoff; any
// other error ends consumption.
func (c *Client) ConsumeLedgerEvents(ctx context.Context, handler func(*LedgerEventMessage) error) error {
	attempt := 0
	for {
		err := c.consume(ctx, handler, func() { attempt = 0 })
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping message consumption", applog.FieldReason, ctx.Err())
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := backoff(attempt)
		attempt++
		c.logger.WarnContext(ctx, "Consumer lost connection, retrying",
			applog.FieldError, err, "attempt", attempt, "backoff", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// consume runs one delivery loop on the current channel. connected is
// called once the consumer is registered.
func (c *Client) consume(ctx context.Context, handler func(*LedgerEventMessage) error, connected func()) error {
	ch, err := c.ensureChannel(ctx)
	if err != nil {
		return err
	}

	const autoAck, exclusive, noLocal, noWait = false, false, false, false
	deliveries, err := ch.Consume(c.queue, "", autoAck, exclusive, noLocal, noWait, nil)
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", c.queue, err)
	}
	connected()
	c.logger.InfoContext(ctx, "Started consuming ledger events", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return amqp091.ErrClosed
			}
			c.handleDelivery(ctx, d, handler)
		}
	}
}

// handleDelivery acks handled messages, requeues handler failures and drops
// messages that do not decode.
func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler func(*LedgerEventMessage) error) {
	msg, err := LedgerEventMessageFromJSON(d.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Dropping undecodable message", applog.FieldError, err)
		_ = d.Nack(false, false)
		return
	}
	if err := handler(msg); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle message",
			applog.FieldError, err,
			applog.FieldTransactionID, msg.TransactionID,
			applog.FieldRevision, msg.Revision)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// backoff doubles from one second and is capped at maxBackoff.
func backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	return min(time.Second<<attempt, maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) dropLocked() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.channel, c.conn = nil, nil
	return err
}
