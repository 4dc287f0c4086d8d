package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	DeadLetterQueueName    = "transcoder_submissions_dlq"
	DeadLetterExchangeName = "transcoder_dlq"
)

// setupDeadLetterQueue sets up the dead letter queue infrastructure.
// Submissions land here when their handler fails or the TTR elapses;
// they are kept for inspection and manual redrive, never requeued
// automatically.
func (q *Queue) setupDeadLetterQueue() error {
	// Declare dead letter exchange
	err := q.channel.ExchangeDeclare(
		DeadLetterExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	// Declare dead letter queue
	_, err = q.channel.QueueDeclare(
		DeadLetterQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	// Bind DLQ to exchange
	err = q.channel.QueueBind(
		DeadLetterQueueName,
		DeadLetterQueueName,
		DeadLetterExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	return nil
}

// RedriveDLQ drains up to limit dead-lettered submissions back onto
// the submission queue and returns how many it moved. It stops early
// when the dead letter queue runs empty; an unreadable payload is
// dropped since it can never be processed.
func (q *Queue) RedriveDLQ(ctx context.Context, limit int) (int, error) {
	redriven := 0
	for i := 0; i < limit; i++ {
		msg, ok, err := q.channel.Get(DeadLetterQueueName, false)
		if err != nil {
			return redriven, fmt.Errorf("failed to read from DLQ: %w", err)
		}
		if !ok {
			break
		}

		var sub Submission
		if err := json.Unmarshal(msg.Body, &sub); err != nil {
			msg.Nack(false, false)
			continue
		}

		if err := q.PublishSubmission(ctx, sub.JobID); err != nil {
			msg.Nack(false, true)
			return redriven, err
		}
		msg.Ack(false)
		redriven++
	}
	return redriven, nil
}

// GetDLQDepth returns the number of messages in the dead letter queue
func (q *Queue) GetDLQDepth() (int, error) {
	info, err := q.channel.QueueInspect(DeadLetterQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}

	return info.Messages, nil
}
