package sqs

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
)

// Handle is an opaque reference to one durable remote queue. Created lazily
// on first resolution of a key and cached for the lifetime of the owning
// worker; never destroyed by this adapter.
type Handle struct {
	Key  string
	Name string
	URL  string
}

// QueueName derives the remote queue name for key as prefix + env + "_" +
// key, truncated to MaxQueueNameLength. Truncation is deterministic but
// lossy: two distinct keys sharing a long enough head land on the same
// remote queue. The resolver cannot detect that, it is a documented naming
// collision risk.
func QueueName(prefix, env, key string) string {
	name := prefix + env + "_" + key
	if len(name) > MaxQueueNameLength {
		name = name[:MaxQueueNameLength]
	}
	return name
}

// resolve returns the cached handle for key or requests the queue by its
// derived name. CreateQueue is create-or-fetch on the service side, so
// resolution is idempotent. Failures come back as *ConnectionError with no
// retry beyond what the transport itself does.
func (w *Worker) resolve(ctx context.Context, key string) (*Handle, error) {
	if h, ok := w.handles[key]; ok {
		return h, nil
	}
	name := QueueName(w.broker.cfg.Prefix, w.broker.env, key)
	out, err := w.broker.svc.CreateQueueWithContext(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
		Attributes: map[string]*string{
			"VisibilityTimeout": aws.String(strconv.Itoa(w.broker.cfg.VisibilityTimeout)),
		},
	})
	if err != nil {
		return nil, &ConnectionError{Op: "resolve " + name, Err: err}
	}
	h := &Handle{Key: key, Name: name, URL: aws.StringValue(out.QueueUrl)}
	w.handles[key] = h
	return h, nil
}
