package queue

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes reservation confirmed events.  Errors are logged and
// returned so callers can ignore failures without interrupting the main
// request flow; confirmation of a reservation never depends on the broker
// being up.
type Publisher struct {
    url       string
    queueName string
}

// NewPublisher returns a Publisher for the given broker URL and queue.
func NewPublisher(url, queueName string) *Publisher {
    return &Publisher{url: url, queueName: queueName}
}

// PublishReservationConfirmed publishes ev to the confirmed-reservations
// queue.  The queue is declared durable (idempotent) and messages are marked
// persistent so they survive broker restarts.
func (p *Publisher) PublishReservationConfirmed(ctx context.Context, ev ReservationConfirmedEvent) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        log.Printf("publisher: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("publisher: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(
        p.queueName, // name
        true,        // durable
        false,       // autoDelete
        false,       // exclusive
        false,       // noWait
        nil,         // args
    ); err != nil {
        log.Printf("publisher: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        log.Printf("publisher: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",          // default exchange
        p.queueName, // routing key = queue name
        false,       // mandatory
        false,       // immediate
        pub,
    ); err != nil {
        log.Printf("publisher: publish failed: %v", err)
        return err
    }
    return nil
}
