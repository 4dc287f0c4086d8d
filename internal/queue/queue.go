package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/mediapress/transcoder/internal/config"
)

const (
	SubmissionQueueName = "transcoder_submissions"
	ExchangeName        = "transcoder"
)

// Submission is the message carried on the queue. Only the job ID
// travels; the worker reloads the job from the store so the queued
// payload can never go stale.
type Submission struct {
	JobID int64 `json:"job_id"`
}

// Queue provides message queue operations
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	ttr     time.Duration
}

// New creates a new queue client
func New(cfg config.QueueConfig) (*Queue, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare exchange
	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	// The TTR caps how long a consumed submission can sit unacked while
	// the worker drives the job's run loop. Failed submissions are
	// dead-lettered rather than requeued.
	args := amqp.Table{
		"x-consumer-timeout":        cfg.TTR.Milliseconds(),
		"x-dead-letter-exchange":    DeadLetterExchangeName,
		"x-dead-letter-routing-key": DeadLetterQueueName,
	}

	_, err = channel.QueueDeclare(
		SubmissionQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		args,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind queue to exchange
	err = channel.QueueBind(
		SubmissionQueueName,
		SubmissionQueueName,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	q := &Queue{
		conn:    conn,
		channel: channel,
		ttr:     cfg.TTR,
	}

	if err := q.setupDeadLetterQueue(); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return q, nil
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// PublishSubmission enqueues a job for asynchronous submission
func (q *Queue) PublishSubmission(ctx context.Context, jobID int64) error {
	body, err := json.Marshal(Submission{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		ExchangeName,
		SubmissionQueueName,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish submission: %w", err)
	}

	return nil
}

// ConsumeSubmissions starts consuming job submissions from the queue.
// A handler error dead-letters the message; there is no client-side
// retry because the job row already records the failure. A run cut
// short by shutdown is not a failure: its submission is requeued for
// the next worker.
func (q *Queue) ConsumeSubmissions(ctx context.Context, handler func(context.Context, Submission) error) error {
	// Set QoS to limit concurrent processing
	err := q.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		SubmissionQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var sub Submission
				if err := json.Unmarshal(msg.Body, &sub); err != nil {
					msg.Nack(false, false)
					continue
				}

				err := handler(ctx, sub)
				switch {
				case err == nil:
					msg.Ack(false)
				case shouldRequeue(err):
					msg.Nack(false, true)
				default:
					msg.Nack(false, false)
				}
			}
		}
	}()

	return nil
}

// shouldRequeue reports whether a handler error reflects the worker
// shutting down rather than a failed submission.
func shouldRequeue(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// GetQueueDepth returns the number of messages in the queue
func (q *Queue) GetQueueDepth() (int, error) {
	info, err := q.channel.QueueInspect(SubmissionQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}
