package initiator

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "sync"

    "github.com/streadway/amqp"
)

// DispatchQueue is the durable queue the dispatcher binary consumes from.
const DispatchQueue = "contact_dispatches"

// AMQPInitiator publishes dispatch jobs to RabbitMQ with publisher confirms,
// so a confirmed publish counts as a successful hand-off to the channel.
type AMQPInitiator struct {
    mu       sync.Mutex
    conn     *amqp.Connection
    ch       *amqp.Channel
    confirms chan amqp.Confirmation
}

func NewAMQPInitiator(url string) (*AMQPInitiator, error) {
    conn, err := amqp.Dial(url)
    if err != nil {
        return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
    }

    ch, err := conn.Channel()
    if err != nil {
        conn.Close()
        return nil, fmt.Errorf("failed to open a channel: %w", err)
    }

    _, err = ch.QueueDeclare(
        DispatchQueue, // name
        true,          // durable
        false,         // delete when unused
        false,         // exclusive
        false,         // no-wait
        nil,           // arguments
    )
    if err != nil {
        ch.Close()
        conn.Close()
        return nil, fmt.Errorf("failed to declare queue: %w", err)
    }

    if err := ch.Confirm(false); err != nil {
        ch.Close()
        conn.Close()
        return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
    }
    confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

    return &AMQPInitiator{conn: conn, ch: ch, confirms: confirms}, nil
}

// Dispatch publishes the job and waits for the broker's confirm. Serialized
// under the mutex so confirms pair with publishes one to one.
func (a *AMQPInitiator) Dispatch(ctx context.Context, req DispatchRequest) error {
    body, err := json.Marshal(req)
    if err != nil {
        return err
    }

    a.mu.Lock()
    defer a.mu.Unlock()

    err = a.ch.Publish(
        "",
        DispatchQueue,
        false,
        false,
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Body:         body,
        },
    )
    if err != nil {
        return fmt.Errorf("failed to publish dispatch job: %w", err)
    }

    select {
    case confirm, ok := <-a.confirms:
        if !ok {
            return fmt.Errorf("confirm channel closed")
        }
        if !confirm.Ack {
            return fmt.Errorf("broker rejected dispatch job for lead %d", req.LeadID)
        }
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

func (a *AMQPInitiator) Close() {
    if err := a.ch.Close(); err != nil {
        log.Println("⚠️ Failed to close AMQP channel:", err)
    }
    if err := a.conn.Close(); err != nil {
        log.Println("⚠️ Failed to close AMQP connection:", err)
    }
}

var _ ContactInitiator = (*AMQPInitiator)(nil)
