package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// BankTransferConfirmer is the slice of the lifecycle engine the consumer
// needs: applying a bank-transfer confirmation to a reservation.
type BankTransferConfirmer interface {
    ConfirmBankTransfer(ctx context.Context, reservationID string) error
}

// disposition is the explicit acknowledgment decision for one delivery.
// The processing function decides; the consume loop owns the channel calls.
type disposition int

const (
    ackMessage     disposition = iota // processed, remove from queue
    dropMessage                       // reject without requeue -> dead letter
    requeueMessage                    // transient failure, redeliver once
)

// Consumer listens on the payment-update queue and applies confirmations
// through the lifecycle engine.  Delivery semantics are at-least-once:
// messages are acked only after successful processing, so duplicates are
// expected and handled by the engine's idempotent transition.
//
// Poison handling: payloads that cannot be decoded or carry no valid
// reservation id are dead-lettered immediately (redelivery cannot fix
// them).  Transient downstream failures are requeued once; a redelivered
// message that fails again goes to the dead-letter queue.
type Consumer struct {
    url       string
    queueName string
    confirmer BankTransferConfirmer
}

// NewConsumer returns a Consumer bound to the given broker URL and queue.
func NewConsumer(url, queueName string, confirmer BankTransferConfirmer) *Consumer {
    return &Consumer{url: url, queueName: queueName, confirmer: confirmer}
}

func (c *Consumer) dlqName() string { return c.queueName + ".dlq" }

// Start connects to RabbitMQ and consumes until ctx is cancelled.  It runs
// a reconnect loop with capped exponential backoff; processing errors never
// stop the loop, they only decide the fate of the individual message.
func (c *Consumer) Start(ctx context.Context) {
    backoff := time.Second
    for {
        select {
        case <-ctx.Done():
            return
        default:
        }

        conn, err := amqp.Dial(c.url)
        if err != nil {
            log.Printf("consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            select {
            case <-ctx.Done():
                return
            case <-time.After(backoff):
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        if err := c.consumeLoop(ctx, conn); err != nil {
            log.Printf("consumer: consume loop ended: %v; reconnecting", err)
        }
        _ = conn.Close()
        if ctx.Err() != nil {
            return
        }
        time.Sleep(2 * time.Second)
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    // one message at a time; idempotency, not ordering, is the correctness
    // mechanism, but there is no reason to buffer unacked deliveries
    if err := ch.Qos(1, 0, false); err != nil {
        log.Printf("consumer: set QoS failed: %v", err)
    }

    if _, err := ch.QueueDeclare(c.dlqName(), true, false, false, false, nil); err != nil {
        return fmt.Errorf("dlq declare: %w", err)
    }
    args := amqp.Table{
        "x-dead-letter-exchange":    "",
        "x-dead-letter-routing-key": c.dlqName(),
    }
    if _, err := ch.QueueDeclare(c.queueName, true, false, false, false, args); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    log.Printf("consumer: listening on %s", c.queueName)
    for {
        select {
        case <-ctx.Done():
            return nil
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            switch disp, err := c.process(ctx, d.Body, d.Redelivered); disp {
            case ackMessage:
                _ = d.Ack(false)
            case requeueMessage:
                log.Printf("consumer: transient failure, requeueing: %v", err)
                _ = d.Nack(false, true)
            default:
                log.Printf("consumer: dead-lettering message: %v", err)
                _ = d.Nack(false, false)
            }
        }
    }
}

// process handles a single delivery body and returns the acknowledgment
// decision.  It never panics the loop; every failure is folded into a
// disposition.
func (c *Consumer) process(ctx context.Context, body []byte, redelivered bool) (disposition, error) {
    var ev PaymentUpdateEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return dropMessage, fmt.Errorf("decode payment update: %w", err)
    }

    id, err := ExtractReservationID(ev.TransactionDescription)
    if err != nil {
        return dropMessage, fmt.Errorf("transaction %s: %w", ev.TransactionID, err)
    }

    if err := c.confirmer.ConfirmBankTransfer(ctx, id); err != nil {
        if redelivered {
            return dropMessage, fmt.Errorf("confirm %s failed twice: %w", id, err)
        }
        return requeueMessage, fmt.Errorf("confirm %s: %w", id, err)
    }
    return ackMessage, nil
}
