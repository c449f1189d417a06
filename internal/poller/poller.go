package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic   = "checkout-outbox"
	DefaultGroupID = "bag-service-consumer"
)

// BagClearer empties a session's bag.
type BagClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// CheckoutCompleted is the outbox event published when a checkout finishes.
type CheckoutCompleted struct {
	CheckoutID string `json:"checkout_id"`
	SessionID  string `json:"session_id"`
}

// Poller clears the bag of every session whose checkout completed.
type Poller struct {
	bags    BagClearer
	reader  messageReader
	backoff time.Duration
}

func NewPoller(bags BagClearer, topic, groupID string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return newPoller(bags, reader)
}

func newPoller(bags BagClearer, reader messageReader) *Poller {
	return &Poller{bags: bags, reader: reader, backoff: time.Second}
}

// Run consumes until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.clearNextBag(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "error reading message", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
		}
	}
}

// Start runs the poller in the background. The returned stop cancels it and
// waits for Run to return, so no Clear is in flight afterwards.
func (p *Poller) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		slog.Error("error closing reader", slog.Any("error", err))
	}
}

// clearNextBag returns an error only when reading fails. Bad payloads and
// failed clears are logged and the message is dropped.
func (p *Poller) clearNextBag(ctx context.Context) error {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}

	var event CheckoutCompleted
	if err := json.Unmarshal(m.Value, &event); err != nil {
		slog.WarnContext(ctx, "error parsing message",
			slog.Int64("offset", m.Offset),
			slog.Any("error", err))
		return nil
	}
	if event.SessionID == "" {
		slog.WarnContext(ctx, "missing or invalid session_id",
			slog.Int64("offset", m.Offset),
			slog.String("checkout_id", event.CheckoutID))
		return nil
	}

	if err := p.bags.Clear(ctx, event.SessionID); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		slog.ErrorContext(ctx, "failed to clear bag",
			slog.String("session_id", event.SessionID),
			slog.String("checkout_id", event.CheckoutID),
			slog.Any("error", err))
		return nil
	}

	slog.InfoContext(ctx, "bag cleared after checkout",
		slog.String("session_id", event.SessionID),
		slog.String("checkout_id", event.CheckoutID))
	return nil
}
