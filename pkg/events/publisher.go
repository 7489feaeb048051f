// Package events publishes marketplace notifications to an AMQP topic
// exchange. Publishing is best-effort: a nil *Publisher is a no-op, and
// broker errors are logged and swallowed, same as persistence failures.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"mandi/pkg/domain"
)

const (
	RoutingKeyListingCreated = "listing.created"
	RoutingKeyMessageSent    = "chat.message"
)

const publishTimeout = 3 * time.Second

// Publisher fans out listing and chat events.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewPublisher connects to the broker and declares the topic exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = "mandi.events"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, channel: channel, exchange: exchange}, nil
}

type listingCreatedEvent struct {
	ListingID string          `json:"listingId"`
	Item      string          `json:"item"`
	Price     float64         `json:"price"`
	Currency  string          `json:"currency"`
	Category  domain.Category `json:"category,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type messageSentEvent struct {
	SessionID string    `json:"sessionId"`
	ListingID string    `json:"listingId"`
	MessageID string    `json:"messageId"`
	SenderID  string    `json:"senderId"`
	Timestamp time.Time `json:"timestamp"`
}

// ListingCreated announces a freshly confirmed listing.
func (p *Publisher) ListingCreated(listing domain.Listing) {
	if p == nil {
		return
	}
	p.publish(RoutingKeyListingCreated, listingCreatedEvent{
		ListingID: listing.ID,
		Item:      listing.Item,
		Price:     listing.Price,
		Currency:  listing.Currency,
		Category:  listing.Category,
		CreatedAt: listing.CreatedAt,
	})
}

// MessageSent announces a message appended to a session log. Message bodies
// stay out of the event; consumers read the log if they need text.
func (p *Publisher) MessageSent(session domain.ChatSession, msg domain.Message) {
	if p == nil {
		return
	}
	p.publish(RoutingKeyMessageSent, messageSentEvent{
		SessionID: session.ID,
		ListingID: session.ListingID,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Timestamp: msg.Timestamp,
	})
}

func (p *Publisher) publish(routingKey string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("encode event", "routing_key", routingKey, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
	if err != nil {
		slog.Warn("publish event", "routing_key", routingKey, "err", err)
	}
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
