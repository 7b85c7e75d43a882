package sqs

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/s4mli/cola/mq"
)

type fakeService struct {
	mu         sync.Mutex
	created    []string
	createErr  error
	batches    [][]*sqs.Message
	receiveErr error
	deleted    []string
	deleteErr  error
	sent       []string
	sendErr    error
	sentSignal chan struct{}
}

func (f *fakeService) CreateQueueWithContext(_ aws.Context, in *sqs.CreateQueueInput,
	_ ...request.Option) (*sqs.CreateQueueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	name := aws.StringValue(in.QueueName)
	f.created = append(f.created, name)
	return &sqs.CreateQueueOutput{QueueUrl: aws.String("https://sqs.test/" + name)}, nil
}

func (f *fakeService) ReceiveMessageWithContext(_ aws.Context, _ *sqs.ReceiveMessageInput,
	_ ...request.Option) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	if len(f.batches) == 0 {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeService) DeleteMessageWithContext(_ aws.Context, in *sqs.DeleteMessageInput,
	_ ...request.Option) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, aws.StringValue(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeService) SendMessageWithContext(_ aws.Context, in *sqs.SendMessageInput,
	_ ...request.Option) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	if f.sendErr != nil {
		f.mu.Unlock()
		return nil, f.sendErr
	}
	f.sent = append(f.sent, aws.StringValue(in.MessageBody))
	f.mu.Unlock()
	if f.sentSignal != nil {
		f.sentSignal <- struct{}{}
	}
	return &sqs.SendMessageOutput{}, nil
}

func message(id, body string) *sqs.Message {
	return &sqs.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("rh-" + id),
		Body:          aws.String(body),
	}
}

func newTestWorker(t *testing.T, f *fakeService, cfg Config) *Worker {
	assert.Nil(t, cfg.normalize())
	logger := logrus.New()
	logger.SetOutput(ioutil.Discard)
	return NewWorker(&Broker{svc: f, cfg: cfg, env: "test", logger: logger})
}

func testConfig() Config {
	return Config{AccessKey: "ak", SecretKey: "sk", VisibilityTimeout: 30, VisibilityReserve: 10}
}

func TestRetrieveOnEmptyQueue(t *testing.T) {
	f := &fakeService{}
	w := newTestWorker(t, f, testConfig())
	payload, err := w.Retrieve(context.Background(), "emails")
	assert.Nil(t, err)
	assert.Nil(t, payload)
	assert.Equal(t, []string{"test_emails"}, f.created)
	assert.Equal(t, 0, len(f.deleted))
}

func TestRetrieveDeliversThenDropsExpired(t *testing.T) {
	f := &fakeService{batches: [][]*sqs.Message{{
		message("m1", `{"telegram":1}`),
		message("m2", `{"telegram":2}`),
	}}}
	w := newTestWorker(t, f, testConfig())
	now := time.Unix(1000, 0)
	w.now = func() time.Time { return now }

	// batch pulled at t=0, message 1 well inside the 20s margin
	payload, err := w.Retrieve(context.Background(), "emails")
	assert.Nil(t, err)
	assert.Equal(t, mq.Payload{"telegram": float64(1)}, payload)
	assert.Equal(t, []string{"rh-m1"}, f.deleted)

	// 21s elapsed >= 30-10, message 2 is left for redelivery, no delete
	now = now.Add(21 * time.Second)
	payload, err = w.Retrieve(context.Background(), "emails")
	assert.Nil(t, err)
	assert.Nil(t, payload)
	assert.Equal(t, []string{"rh-m1"}, f.deleted)

	// buffer drained, the next call is a fresh empty poll
	payload, err = w.Retrieve(context.Background(), "emails")
	assert.Nil(t, err)
	assert.Nil(t, payload)
}

func TestRetrieveServesBatchInOrder(t *testing.T) {
	f := &fakeService{batches: [][]*sqs.Message{{
		message("m1", `{"seq":1}`),
		message("m2", `{"seq":2}`),
		message("m3", `{"seq":3}`),
	}}}
	w := newTestWorker(t, f, testConfig())
	now := time.Unix(1000, 0)
	w.now = func() time.Time { return now }
	for i := 1; i <= 3; i++ {
		payload, err := w.Retrieve(context.Background(), "emails")
		assert.Nil(t, err)
		assert.Equal(t, mq.Payload{"seq": float64(i)}, payload)
		now = now.Add(time.Second)
	}
	assert.Equal(t, []string{"rh-m1", "rh-m2", "rh-m3"}, f.deleted)
}

func TestRetrieveDecodeFailurePropagates(t *testing.T) {
	f := &fakeService{batches: [][]*sqs.Message{{message("m1", "not json at all")}}}
	w := newTestWorker(t, f, testConfig())
	payload, err := w.Retrieve(context.Background(), "emails")
	assert.Nil(t, payload)
	var decodeErr *DecodeError
	assert.Equal(t, true, errors.As(err, &decodeErr))
	assert.Equal(t, "test_emails", decodeErr.Queue)
	assert.Equal(t, 0, len(f.deleted))
}

func TestRetrievePullFailureReadsAsEmptyPoll(t *testing.T) {
	f := &fakeService{receiveErr: fmt.Errorf("throttled")}
	w := newTestWorker(t, f, testConfig())
	payload, err := w.Retrieve(context.Background(), "emails")
	assert.Nil(t, err)
	assert.Nil(t, payload)
}

func TestRetrieveDeleteFailureReadsAsEmptyPoll(t *testing.T) {
	f := &fakeService{
		batches:   [][]*sqs.Message{{message("m1", `{"seq":1}`)}},
		deleteErr: fmt.Errorf("gone away"),
	}
	w := newTestWorker(t, f, testConfig())
	payload, err := w.Retrieve(context.Background(), "emails")
	assert.Nil(t, err)
	assert.Nil(t, payload)
}

func TestRetrieveResolutionFailurePropagates(t *testing.T) {
	f := &fakeService{createErr: fmt.Errorf("forbidden")}
	w := newTestWorker(t, f, testConfig())
	_, err := w.Retrieve(context.Background(), "emails")
	var connErr *ConnectionError
	assert.Equal(t, true, errors.As(err, &connErr))
}

func TestResolveCachesHandlePerKey(t *testing.T) {
	f := &fakeService{}
	w := newTestWorker(t, f, testConfig())
	for i := 0; i < 3; i++ {
		_, err := w.Retrieve(context.Background(), "emails")
		assert.Nil(t, err)
	}
	assert.Equal(t, 1, len(f.created))
}

func TestRequestRoundTrip(t *testing.T) {
	f := &fakeService{sentSignal: make(chan struct{}, 1)}
	w := newTestWorker(t, f, testConfig())
	payload := mq.Payload{"action": "resize", "width": float64(640)}
	assert.Nil(t, w.Request(context.Background(), "images", payload))
	select {
	case <-f.sentSignal:
	case <-time.After(2 * time.Second):
		t.Fatal("submission never reached the service")
	}

	// what went out comes back equal once retrieved again
	f.batches = [][]*sqs.Message{{message("m1", f.sent[0])}}
	got, err := w.Retrieve(context.Background(), "images")
	assert.Nil(t, err)
	assert.Equal(t, payload, got)
}

func TestRequestEncodeFailureIsSynchronous(t *testing.T) {
	f := &fakeService{}
	w := newTestWorker(t, f, testConfig())
	err := w.Request(context.Background(), "images", mq.Payload{"bad": make(chan int)})
	var deliveryErr *DeliveryError
	assert.Equal(t, true, errors.As(err, &deliveryErr))
	assert.Equal(t, 0, len(f.sent))
}

func TestRequestResolutionFailureIsSynchronous(t *testing.T) {
	f := &fakeService{createErr: fmt.Errorf("forbidden")}
	w := newTestWorker(t, f, testConfig())
	err := w.Request(context.Background(), "images", mq.Payload{"a": "b"})
	var connErr *ConnectionError
	assert.Equal(t, true, errors.As(err, &connErr))
}
