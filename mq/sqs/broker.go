package sqs

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/sirupsen/logrus"

	"github.com/s4mli/cola/cleaner"
)

// api is the slice of the service client the adapter touches, narrowed so
// tests can stand in for the real thing.
type api interface {
	CreateQueueWithContext(aws.Context, *sqs.CreateQueueInput, ...request.Option) (*sqs.CreateQueueOutput, error)
	ReceiveMessageWithContext(aws.Context, *sqs.ReceiveMessageInput, ...request.Option) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageWithContext(aws.Context, *sqs.DeleteMessageInput, ...request.Option) (*sqs.DeleteMessageOutput, error)
	SendMessageWithContext(aws.Context, *sqs.SendMessageInput, ...request.Option) (*sqs.SendMessageOutput, error)
}

// Broker holds the credentials and tuning for one environment. The service
// client inside is safe for concurrent use from many workers; the Broker
// itself keeps no other state.
type Broker struct {
	svc    api
	cfg    Config
	env    string
	logger logrus.FieldLogger
}

func (b *Broker) Name() string { return fmt.Sprintf("SQS:B(%s)", b.env) }

// Stop is a no-op: the client is connectionless, there is no session to
// tear down.
func (b *Broker) Stop() {}

// Connect validates cfg, applies defaults and builds the service client.
// env names the environment the queue names are derived for.
func Connect(cfg Config, env string, logger logrus.FieldLogger) (*Broker, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	awsCfg := aws.NewConfig().
		WithRegion(cfg.Region).
		WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")).
		WithLogLevel(aws.LogOff).
		WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.ReadTimeout) * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: time.Duration(cfg.OpenTimeout) * time.Second,
				}).DialContext,
			},
		})
	awsCfg = request.WithRetryer(awsCfg, client.DefaultRetryer{
		NumMaxRetries: cfg.MaxRetries,
		MinRetryDelay: time.Duration(cfg.RetryDelay) * time.Second,
	})
	s, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, &ConnectionError{Op: "connect", Err: err}
	}
	b := &Broker{
		svc:    sqs.New(s),
		cfg:    cfg,
		env:    env,
		logger: logger.WithField("#", fmt.Sprintf("SQS(%s)", env)),
	}
	cleaner.Register(b)
	return b, nil
}
