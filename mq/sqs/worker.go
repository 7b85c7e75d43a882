package sqs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/sirupsen/logrus"

	"github.com/s4mli/cola/mq"
)

// pending is one received but not yet delivered message.
type pending struct {
	receivedAt    time.Time
	receiptHandle string
	body          string
}

// buffer holds the remainder of one batch pull, served strictly in fetch
// order. No ordering is promised across batches.
type buffer struct {
	msgs []pending
}

func (b *buffer) pop() (pending, bool) {
	if len(b.msgs) == 0 {
		return pending{}, false
	}
	m := b.msgs[0]
	b.msgs = b.msgs[1:]
	return m, true
}

// Worker owns the queue-handle cache and the per-key delivery buffers for
// one execution context. It is not safe for concurrent use: give every
// worker goroutine its own instance, which keeps buffer state lock free.
// The Broker underneath is shared and safe to use from many workers.
type Worker struct {
	broker  *Broker
	logger  logrus.FieldLogger
	handles map[string]*Handle
	buffers map[string]*buffer
	now     func() time.Time
}

func NewWorker(b *Broker) *Worker {
	return &Worker{
		broker:  b,
		logger:  b.logger.WithField("#", "worker"),
		handles: make(map[string]*Handle),
		buffers: make(map[string]*buffer),
		now:     time.Now,
	}
}

// Retrieve returns at most one decoded unit of work for key, or nil when
// nothing is deliverable. It blocks for at most one network round trip and
// never waits for new messages.
//
// Resolution and decode failures propagate; pull and delete failures are
// logged and read as an empty poll, naturally retried on the next call.
// A delivered message has had exactly one delete issued for its receipt
// handle. The delete happens before the caller processes the payload, so a
// crash right after Retrieve loses the message rather than redelivering it;
// the service has no acknowledge-after-processing hook, this adapter stays
// at most once and does not pretend otherwise.
func (w *Worker) Retrieve(ctx context.Context, key string) (mq.Payload, error) {
	h, err := w.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	buf := w.buffers[key]
	if buf == nil || len(buf.msgs) == 0 {
		msgs, err := w.pull(ctx, h)
		if err != nil {
			w.logger.WithFields(logrus.Fields{"&": "Retrieve", "*": key}).Error(err)
			return nil, nil
		}
		buf = &buffer{msgs: msgs}
		w.buffers[key] = buf
	}
	m, ok := buf.pop()
	if !ok {
		return nil, nil
	}
	if w.now().Sub(m.receivedAt) >= w.broker.cfg.visibilityMargin() {
		// Too little of the visibility window left to decode, hand off and
		// delete before the service re-exposes the message. Leave it for
		// redelivery instead of risking a concurrent duplicate.
		w.logger.WithFields(logrus.Fields{"&": "Retrieve", "*": key}).
			Warn("visibility margin passed, left for redelivery")
		return nil, nil
	}
	var payload mq.Payload
	if err := json.Unmarshal([]byte(m.body), &payload); err != nil {
		return nil, &DecodeError{Queue: h.Name, Err: err}
	}
	if err := w.remove(ctx, h, m.receiptHandle); err != nil {
		w.logger.WithFields(logrus.Fields{"&": "Retrieve", "*": key}).Error(err)
		return nil, nil
	}
	return payload, nil
}

// Request encodes payload and submits it for key without waiting for the
// remote acknowledgment: the send runs detached and cannot be cancelled
// once dispatched. Only failures detected before the hand-off, a payload
// that will not encode or a queue that will not resolve, come back to the
// caller; a failed remote submission is visible in the log only. Fire and
// forget, not a delivery guarantee.
func (w *Worker) Request(ctx context.Context, key string, payload mq.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{Queue: key, Err: err}
	}
	h, err := w.resolve(ctx, key)
	if err != nil {
		return err
	}
	logger := w.logger.WithFields(logrus.Fields{"&": "Request", "*": h.Name})
	go func() {
		if _, err := w.broker.svc.SendMessageWithContext(aws.BackgroundContext(),
			&sqs.SendMessageInput{
				QueueUrl:    aws.String(h.URL),
				MessageBody: aws.String(string(body)),
			}); err != nil {
			logger.Error(err)
		}
	}()
	return nil
}

// pull issues one batch pull against h, stamping every message with the
// receive time the expiry check measures from.
func (w *Worker) pull(ctx context.Context, h *Handle) ([]pending, error) {
	out, err := w.broker.svc.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(h.URL),
		MaxNumberOfMessages: aws.Int64(int64(w.broker.cfg.MessagesPerRequest)),
		VisibilityTimeout:   aws.Int64(int64(w.broker.cfg.VisibilityTimeout)),
		// never wait for messages to appear, even on a long-polling queue
		WaitTimeSeconds: aws.Int64(0),
	})
	if err != nil {
		return nil, err
	}
	receivedAt := w.now()
	msgs := make([]pending, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, pending{
			receivedAt:    receivedAt,
			receiptHandle: aws.StringValue(m.ReceiptHandle),
			body:          aws.StringValue(m.Body),
		})
	}
	return msgs, nil
}

func (w *Worker) remove(ctx context.Context, h *Handle, receiptHandle string) error {
	_, err := w.broker.svc.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(h.URL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return err
}
