package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sellio/bidcore/pkg/logger"
)

const exchangeName = "auction.events"

// Event types published on the auction lifecycle exchange. The
// notification system downstream consumes these; delivery is best-effort
// and never blocks the business operation.
const (
	TypeBidPlaced       = "bid_placed"
	TypeAuctionExtended = "auction_extended"
	TypeAuctionEnded    = "auction_ended"
	TypeBuyNow          = "buy_now_triggered"
)

type Event struct {
	Type       string    `json:"type"`
	ItemID     uuid.UUID `json:"item_id"`
	BidID      string    `json:"bid_id,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	Sold       bool      `json:"sold,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type AMQPPublisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  *logger.Logger
}

func NewAMQPPublisher(url string, log *logger.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &AMQPPublisher{conn: conn, ch: ch, log: log}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	routingKey := "auction." + ev.Type
	return p.ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   ev.OccurredAt,
		Body:        body,
	})
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

// NoopPublisher drops every event. Used when AMQP_URL is not configured
// and in tests.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, ev Event) error { return nil }
func (NoopPublisher) Close() error                                { return nil }
