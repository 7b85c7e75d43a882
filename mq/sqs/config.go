package sqs

import (
	"fmt"
	"time"
)

const (
	// MaxMessagesPerRequest is the service hard cap on one batch pull.
	MaxMessagesPerRequest = 10
	// MaxQueueNameLength is the longest queue name the service accepts.
	MaxQueueNameLength = 80
)

const (
	defaultRegion             = "us-east-1"
	defaultMessagesPerRequest = 10
	defaultVisibilityTimeout  = 30
	defaultVisibilityReserve  = 10
	defaultMaxRetries         = 2
	defaultRetryDelay         = 1
	defaultOpenTimeout        = 2
	defaultReadTimeout        = 10
)

// Config carries the credential pair plus queue and transport tuning.
// All durations are seconds. It is immutable once a Broker is connected.
type Config struct {
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	// MessagesPerRequest is how many messages one batch pull may return,
	// capped at MaxMessagesPerRequest.
	MessagesPerRequest int `yaml:"messagesPerRequest"`
	// VisibilityTimeout is how long the service hides a received message
	// from other consumers.
	VisibilityTimeout int `yaml:"visibilityTimeout"`
	// VisibilityReserve is the safety margin kept against VisibilityTimeout:
	// a buffered message older than timeout minus reserve is left for
	// redelivery instead of being handed out.
	VisibilityReserve int `yaml:"visibilityReserve"`
	MaxRetries        int `yaml:"maxRetries"`
	RetryDelay        int `yaml:"retryDelay"`
	OpenTimeout       int `yaml:"openTimeout"`
	ReadTimeout       int `yaml:"readTimeout"`
}

// normalize fills defaults for every zero tuning value and rejects a config
// that is unusable even after defaulting.
func (c *Config) normalize() error {
	if c.AccessKey == "" || c.SecretKey == "" {
		return &ConfigurationError{Reason: "missing credential pair"}
	}
	if c.Region == "" {
		c.Region = defaultRegion
	}
	if c.MessagesPerRequest <= 0 {
		c.MessagesPerRequest = defaultMessagesPerRequest
	}
	if c.MessagesPerRequest > MaxMessagesPerRequest {
		c.MessagesPerRequest = MaxMessagesPerRequest
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = defaultVisibilityTimeout
	}
	if c.VisibilityReserve <= 0 {
		c.VisibilityReserve = defaultVisibilityReserve
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = defaultOpenTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.VisibilityReserve >= c.VisibilityTimeout {
		return &ConfigurationError{Reason: fmt.Sprintf(
			"visibilityReserve ( %d ) must be < visibilityTimeout ( %d )",
			c.VisibilityReserve, c.VisibilityTimeout)}
	}
	return nil
}

// visibilityMargin is how long a buffered message stays deliverable.
func (c *Config) visibilityMargin() time.Duration {
	return time.Duration(c.VisibilityTimeout-c.VisibilityReserve) * time.Second
}
