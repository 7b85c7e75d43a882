package journal

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	sqldb "github.com/s4mli/cola/db/sql"
)

// States a payload moves through, as seen from the dispatcher side.
const (
	StateEnqueued  = "enqueued"
	StateDelivered = "delivered"
)

// Entry is one recorded lifecycle event. The journal is ops visibility
// only: it never holds undelivered work, the queue service does.
type Entry struct {
	Id    int64     `db:"id"`
	Key   string    `db:"task_key"`
	Body  string    `db:"body"`
	State string    `db:"state"`
	At    time.Time `db:"recorded_at"`
}

// mysql dialect, the demo wiring runs against mysql
const schema = `
CREATE TABLE IF NOT EXISTS delivery_journal (
	id BIGINT NOT NULL AUTO_INCREMENT,
	task_key VARCHAR(80) NOT NULL,
	body TEXT NOT NULL,
	state VARCHAR(16) NOT NULL,
	recorded_at DATETIME NOT NULL,
	PRIMARY KEY (id),
	KEY idx_task_key (task_key)
)`

type Journal struct {
	db     sqldb.SqlDB
	logger logrus.FieldLogger
}

func New(db sqldb.SqlDB, logger logrus.FieldLogger) *Journal {
	return &Journal{db: db, logger: logger.WithField("#", "journal")}
}

func (j *Journal) EnsureSchema() error {
	return j.db.Query(func(db *sqlx.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// Record appends one event; failures are logged and returned but never
// block delivery.
func (j *Journal) Record(key, body, state string) error {
	err := j.db.Query(func(db *sqlx.DB) error {
		_, err := db.Exec(
			`INSERT INTO delivery_journal (task_key, body, state, recorded_at) VALUES (?, ?, ?, ?)`,
			key, body, state, time.Now().UTC())
		return err
	})
	if err != nil {
		j.logger.WithField("&", "Record").Error(err)
	}
	return err
}

func (j *Journal) Recent(limit int) ([]Entry, error) {
	var entries []Entry
	err := j.db.Query(func(db *sqlx.DB) error {
		return db.Select(&entries,
			`SELECT id, task_key, body, state, recorded_at FROM delivery_journal ORDER BY id DESC LIMIT ?`,
			limit)
	})
	return entries, err
}
