package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPLog keeps one durable RabbitMQ queue per job type, named
// "<prefix>.<type>".  Messages are published as persistent and consumed
// with manual acks and a prefetch of one, so the broker holds every job
// that has not been acked and redelivers it if the consumer disappears.
type AMQPLog struct {
	url    string
	prefix string

	mu        sync.Mutex
	conn      *amqp.Connection
	pub       *amqp.Channel
	consumers map[string]*amqpConsumer
	inflight  map[string]amqp.Delivery
	declared  map[string]bool
	closed    bool
}

type amqpConsumer struct {
	ch   *amqp.Channel
	msgs <-chan amqp.Delivery
}

// NewAMQPLog returns a log that dials url lazily.
func NewAMQPLog(url, prefix string) *AMQPLog {
	if prefix == "" {
		prefix = "q"
	}
	return &AMQPLog{
		url:       url,
		prefix:    prefix,
		consumers: make(map[string]*amqpConsumer),
		inflight:  make(map[string]amqp.Delivery),
		declared:  make(map[string]bool),
	}
}

func (l *AMQPLog) queueName(jobType string) string {
	return l.prefix + "." + jobType
}

// connection returns the shared connection, dialling again after a drop.
// Callers hold l.mu.
func (l *AMQPLog) connection() (*amqp.Connection, error) {
	if l.closed {
		return nil, ErrClosed
	}
	if l.conn != nil && !l.conn.IsClosed() {
		return l.conn, nil
	}
	conn, err := amqp.Dial(l.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	l.conn = conn
	l.pub = nil
	l.consumers = make(map[string]*amqpConsumer)
	l.declared = make(map[string]bool)
	return conn, nil
}

// declare ensures the queue exists (idempotent).  Callers hold l.mu.
func (l *AMQPLog) declare(ch *amqp.Channel, jobType string) error {
	if l.declared[jobType] {
		return nil
	}
	if _, err := ch.QueueDeclare(
		l.queueName(jobType), // name
		true,                 // durable
		false,                // autoDelete
		false,                // exclusive
		false,                // noWait
		nil,                  // args
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	l.declared[jobType] = true
	return nil
}

func (l *AMQPLog) Push(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	conn, err := l.connection()
	if err != nil {
		return err
	}
	if l.pub == nil || l.pub.IsClosed() {
		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("channel open: %w", err)
		}
		l.pub = ch
	}
	if err := l.declare(l.pub, job.Type); err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Type:         job.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := l.pub.PublishWithContext(ctx,
		"",                    // default exchange
		l.queueName(job.Type), // routing key = queue name
		false,                 // mandatory
		false,                 // immediate
		pub,
	); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (l *AMQPLog) consumer(jobType string) (*amqpConsumer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	conn, err := l.connection()
	if err != nil {
		return nil, err
	}
	if c, ok := l.consumers[jobType]; ok && !c.ch.IsClosed() {
		return c, nil
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set QoS: %w", err)
	}
	if err := l.declare(ch, jobType); err != nil {
		_ = ch.Close()
		return nil, err
	}
	msgs, err := ch.Consume(l.queueName(jobType), "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue consume: %w", err)
	}
	c := &amqpConsumer{ch: ch, msgs: msgs}
	l.consumers[jobType] = c
	return c, nil
}

func (l *AMQPLog) Pop(ctx context.Context, jobType string) (Job, error) {
	c, err := l.consumer(jobType)
	if err != nil {
		return Job{}, err
	}
	for {
		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case d, ok := <-c.msgs:
			if !ok {
				return Job{}, errors.New("deliveries channel closed")
			}
			var job Job
			if err := json.Unmarshal(d.Body, &job); err != nil {
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				return Job{}, fmt.Errorf("unmarshal job: %w", err)
			}
			l.mu.Lock()
			l.inflight[job.ID] = d
			l.mu.Unlock()
			return job, nil
		}
	}
}

func (l *AMQPLog) Ack(ctx context.Context, job Job) error {
	l.mu.Lock()
	d, ok := l.inflight[job.ID]
	delete(l.inflight, job.ID)
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("ack %s: unknown delivery", job.ID)
	}
	return d.Ack(false)
}

func (l *AMQPLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
