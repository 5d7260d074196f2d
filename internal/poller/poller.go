package poller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// SessionClearer empties a session's cart once its order went through.
type SessionClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type checkoutCompleted struct {
	CheckoutID string `json:"checkout_id"`
	SessionID  string `json:"session_id"`
}

const defaultRetryDelay = time.Second

// Poller listens for checkouts the order service has completed and clears the
// matching carts.
type Poller struct {
	reader     messageReader
	sessions   SessionClearer
	retryDelay time.Duration // pause after a failed read
}

func NewPoller(sessions SessionClearer, topic, groupID string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{reader: reader, sessions: sessions, retryDelay: defaultRetryDelay}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.readAndClearCart(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		log.WithError(err).Error("error closing reader")
	}
}

func (p *Poller) readAndClearCart(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		log.WithError(err).Error("error reading message")
		select {
		case <-ctx.Done():
		case <-time.After(p.retryDelay):
		}
		return
	}

	var payload checkoutCompleted
	if errUnmarshal := json.Unmarshal(m.Value, &payload); errUnmarshal != nil {
		log.WithError(errUnmarshal).WithField("offset", m.Offset).Warn("error parsing message")
		return
	}
	if payload.SessionID == "" {
		log.WithField("checkout_id", payload.CheckoutID).Warn("missing or invalid session_id")
		return
	}

	if errClear := p.sessions.Clear(ctx, payload.SessionID); errClear != nil {
		log.WithError(errClear).WithField("session_id", payload.SessionID).Error("failed to clear cart")
		return
	}
	log.WithFields(log.Fields{
		"session_id":  payload.SessionID,
		"checkout_id": payload.CheckoutID,
	}).Info("cart cleared after completed checkout")
}
