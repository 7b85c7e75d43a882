package rabbit

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
	"golang.org/x/net/context"

	"github.com/s4mli/cola/mq"
)

// Worker serves the same retrieve/request contract as the sqs adapter over
// one amqp channel. Channels are not safe for concurrent use, so as with
// the sqs worker every goroutine gets its own instance; the declared-queue
// cache plays the part of the queue-handle cache.
type Worker struct {
	broker   *Broker
	ch       *amqp.Channel
	logger   logrus.FieldLogger
	declared map[string]string
}

func (b *Broker) NewWorker() (*Worker, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbit channel: %w", err)
	}
	if b.cfg.Prefetch > 0 {
		if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("rabbit qos: %w", err)
		}
	}
	return &Worker{
		broker:   b,
		ch:       ch,
		logger:   b.logger.WithField("#", "worker"),
		declared: make(map[string]string),
	}, nil
}

// resolve declares the durable queue for key once and caches its name.
// QueueDeclare is create-or-fetch, the analog of the sqs resolver.
func (w *Worker) resolve(key string) (string, error) {
	if name, ok := w.declared[key]; ok {
		return name, nil
	}
	name := queueName(w.broker.cfg.Prefix, w.broker.env, key)
	if _, err := w.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("rabbit resolve %s: %w", name, err)
	}
	w.declared[key] = name
	return name, nil
}

// Retrieve fetches at most one message for key, or nil when the queue is
// empty. Unlike the sqs adapter there is a real acknowledgment here, issued
// only after a successful decode; a body that will not decode is left
// unacknowledged and the error propagates.
func (w *Worker) Retrieve(ctx context.Context, key string) (mq.Payload, error) {
	name, err := w.resolve(key)
	if err != nil {
		return nil, err
	}
	d, ok, err := w.ch.Get(name, false)
	if err != nil {
		w.logger.WithFields(logrus.Fields{"&": "Retrieve", "*": key}).Error(err)
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	var payload mq.Payload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		return nil, fmt.Errorf("rabbit decode from %s: %w", name, err)
	}
	if err := d.Ack(false); err != nil {
		w.logger.WithFields(logrus.Fields{"&": "Retrieve", "*": key}).Error(err)
		return nil, nil
	}
	return payload, nil
}

// Request publishes payload for key from a detached goroutine, same fire
// and forget contract as the sqs adapter.
func (w *Worker) Request(ctx context.Context, key string, payload mq.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rabbit deliver to %s: %w", key, err)
	}
	name, err := w.resolve(key)
	if err != nil {
		return err
	}
	logger := w.logger.WithFields(logrus.Fields{"&": "Request", "*": name})
	go func() {
		if err := w.ch.Publish("", name, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		}); err != nil {
			logger.Error(err)
		}
	}()
	return nil
}
