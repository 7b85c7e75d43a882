package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/s4mli/cola/cleaner"
	"github.com/s4mli/cola/common"
	sqldb "github.com/s4mli/cola/db/sql"
	"github.com/s4mli/cola/journal"
	"github.com/s4mli/cola/mq"
	"github.com/s4mli/cola/mq/sqs"
)

const appName = "cola"

type logConfig struct {
	Level string `yaml:"level"`
}

type jobConfig struct {
	Workers int      `yaml:"workers"`
	Keys    []string `yaml:"keys"`
}

type mysqlConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db"`
}

type appConfig struct {
	Log   logConfig   `yaml:"log"`
	Job   jobConfig   `yaml:"job"`
	Queue sqs.Config  `yaml:"queue"`
	MySql mysqlConfig `yaml:"mysql"`
}

func runWorker(ctx context.Context, id int, w mq.Transport, keys []string,
	j *journal.Journal, logger logrus.FieldLogger) {
	log := logger.WithField("#", fmt.Sprintf("worker(%d)", id))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		idle := true
		for _, key := range keys {
			payload, err := w.Retrieve(ctx, key)
			if err != nil {
				log.WithField("*", key).Error(err)
				continue
			}
			if payload == nil {
				continue
			}
			idle = false
			log.WithField("*", key).Infof("got %+v", payload)
			if j != nil {
				if body, err := json.Marshal(payload); err == nil {
					j.Record(key, string(body), journal.StateDelivered)
				}
			}
		}
		if idle {
			time.Sleep(time.Second)
		}
	}
}

func main() {
	env := os.Getenv(fmt.Sprintf("%s_env", appName))
	if env == "" {
		env = "development"
	}
	var configFile string
	flag.StringVar(&configFile, "config", "./config.yaml", "configuration file to load")
	flag.Parse()

	var c appConfig
	if err := common.LoadConfig(appName, env, configFile, &c); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(lvl)
	}
	logger.Debugf("running with %s", common.Stringify(c))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker, err := sqs.Connect(c.Queue, env, logger)
	if err != nil {
		logger.Fatal(err)
	}

	var j *journal.Journal
	if c.MySql.Host != "" {
		if db, err := sqldb.Open("mysql", c.MySql.Host, c.MySql.Port,
			c.MySql.User, c.MySql.Password, c.MySql.DBName); err != nil {
			logger.Error(err)
		} else {
			j = journal.New(db, logger)
			if err := j.EnsureSchema(); err != nil {
				logger.Error(err)
			}
		}
	}

	// seed one ping per key so a fresh install has something to chew on
	seed := sqs.NewWorker(broker)
	for _, key := range c.Job.Keys {
		payload := mq.Payload{"ping": "hello", "at": time.Now().Unix()}
		if err := seed.Request(ctx, key, payload); err != nil {
			logger.WithField("*", key).Error(err)
		} else if j != nil {
			if body, err := json.Marshal(payload); err == nil {
				j.Record(key, string(body), journal.StateEnqueued)
			}
		}
	}

	for i := 0; i < c.Job.Workers; i++ {
		// every goroutine owns its own worker, buffers are never shared
		go runWorker(ctx, i, sqs.NewWorker(broker), c.Job.Keys, j, logger)
	}
	cleaner.Run(ctx, logger)
}
