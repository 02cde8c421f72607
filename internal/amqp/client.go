package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	applog "expenses/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 5
	openTimeout = 30 * time.Second
	maxBackoff  = 30 * time.Second
)

var errDeliveriesClosed = errors.New("message channel closed")

// Client publishes and consumes ledger events on a direct exchange.
// Publishing goes through a circuit breaker so a broker outage cannot
// stall ledger mutations.
type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	client.mu.Lock()
	err := client.connectLocked()
	client.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func (c *Client) setup(channel *amqp091.Channel) error {
	err := channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name on a direct exchange.
	err = channel.QueueBind(
		c.queueName,
		c.queueName,
		c.exchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// currentChannel returns an open channel, reconnecting when the previous
// one was dropped.
func (c *Client) currentChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c.channel, nil
}

// PublishLedgerEvent publishes a ledger event. The caller's context bounds
// the publish.
func (c *Client) PublishLedgerEvent(ctx context.Context, ev *LedgerEvent) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, skipping publish of %s", ev.Kind)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	channel, err := c.currentChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    ev.Timestamp,
			Type:         string(ev.Kind),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.mu.Lock()
			c.closeLocked()
			c.mu.Unlock()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.DebugContext(ctx, "Published ledger event",
		applog.FieldComponent, applog.ComponentAMQP,
		applog.FieldEventKind, ev.Kind,
		applog.FieldMonth, ev.Month,
		applog.FieldID, ev.ID,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// ConsumeLedgerEvents delivers events to handler until ctx is cancelled.
// Dropped connections are re-established with exponential backoff.
// Undecodable messages are rejected; handler failures are requeued.
func (c *Client) ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *LedgerEvent) error) error {
	attempt := 0
	for {
		err := c.consume(ctx, handler, func() { attempt = 0 })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, errDeliveriesClosed) && !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP consumer disconnected, retrying",
			applog.FieldComponent, applog.ComponentAMQP,
			applog.FieldError, err,
			"attempt", attempt+1,
			"backoff", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		attempt++
	}
}

func (c *Client) consume(ctx context.Context, handler func(context.Context, *LedgerEvent) error, connected func()) error {
	channel, err := c.currentChannel()
	if err != nil {
		return err
	}

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	connected()

	slog.InfoContext(ctx, "Started consuming ledger events",
		applog.FieldComponent, applog.ComponentAMQP,
		"queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption",
				applog.FieldComponent, applog.ComponentAMQP,
				"reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}

			ev, err := LedgerEventFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to decode ledger event",
					applog.FieldComponent, applog.ComponentAMQP,
					applog.FieldError, err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, ev); err != nil {
				slog.ErrorContext(ctx, "Failed to handle ledger event",
					applog.FieldComponent, applog.ComponentAMQP,
					applog.FieldError, err,
					applog.FieldEventKind, ev.Kind,
					applog.FieldMonth, ev.Month)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	failures := atomic.AddInt64(&c.failureCount, 1)
	if failures >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return err
}
