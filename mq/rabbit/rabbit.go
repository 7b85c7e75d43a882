package rabbit

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/s4mli/cola/cleaner"
)

// name limit imposed by the broker
const maxQueueNameLength = 255

type Config struct {
	Uri      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
	Prefetch int    `yaml:"prefetch"`
}

// Broker holds one shared connection. Channels hang off it per worker, the
// connection itself is safe to share.
type Broker struct {
	conn   *amqp.Connection
	cfg    Config
	env    string
	logger logrus.FieldLogger
}

func (b *Broker) Name() string { return fmt.Sprintf("⚡(%s)", b.cfg.User) }

func (b *Broker) Stop() {
	if err := b.conn.Close(); err != nil {
		b.logger.WithField("&", "Stop").Error(err)
	}
}

func Connect(cfg Config, env string, logger logrus.FieldLogger) (*Broker, error) {
	if cfg.Uri == "" || cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("rabbit configuration: missing uri or credential pair")
	}
	conn, err := amqp.Dial(fmt.Sprintf("amqp://%s:%s@%s/", cfg.User, cfg.Password, cfg.Uri))
	if err != nil {
		return nil, fmt.Errorf("rabbit connect: %w", err)
	}
	b := &Broker{
		conn:   conn,
		cfg:    cfg,
		env:    env,
		logger: logger.WithField("#", fmt.Sprintf("AMQP(%s)", env)),
	}
	cleaner.Register(b)
	return b, nil
}

// queueName derives the durable queue name for key the same way the sqs
// adapter does, against this broker's longer name limit. Same lossy
// truncation caveat.
func queueName(prefix, env, key string) string {
	name := prefix + env + "_" + key
	if len(name) > maxQueueNameLength {
		name = name[:maxQueueNameLength]
	}
	return name
}
