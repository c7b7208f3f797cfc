package queue

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"
)

// Publisher sends RSVP events to RabbitMQ. It dials per message, so a
// broker outage only fails the publish in progress. Errors are logged and
// returned so callers can choose to ignore them without interrupting the
// request.
type Publisher struct {
    url    string
    logger zerolog.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, logger zerolog.Logger) *Publisher {
    return &Publisher{url: url, logger: logger.With().Str("component", "rsvp-publisher").Logger()}
}

// PublishReservationSubmitted publishes ev to ReservationQueueName as a
// persistent message.
func (p *Publisher) PublishReservationSubmitted(ctx context.Context, ev ReservationSubmittedEvent) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        p.logger.Error().Err(err).Msg("dial failed")
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.logger.Error().Err(err).Msg("channel open failed")
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        ReservationQueueName, // name
        true,                 // durable
        false,                // autoDelete
        false,                // exclusive
        false,                // noWait
        nil,                  // args
    ); err != nil {
        p.logger.Error().Err(err).Msg("queue declare failed")
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        p.logger.Error().Err(err).Msg("marshal event failed")
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",                   // default exchange
        ReservationQueueName, // routing key = queue name
        false,                // mandatory
        false,                // immediate
        pub,
    ); err != nil {
        p.logger.Error().Err(err).Msg("publish failed")
        return err
    }
    p.logger.Debug().Uint64("guest_id", ev.GuestID).Msg("rsvp event published")
    return nil
}
