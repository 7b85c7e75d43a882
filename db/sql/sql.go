package sqldb

import (
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/s4mli/cola/cleaner"
)

// SqlDB is a narrow handle over one connection pool.
type SqlDB interface {
	Query(func(*sqlx.DB) error) error
	QueryTx(func(*sqlx.Tx) error) error
	Close() error
}

type helper struct {
	db     *sqlx.DB
	driver string
}

func (h *helper) Name() string { return strings.ToUpper(h.driver) }
func (h *helper) Stop()        { h.Close() }
func (h *helper) Close() error { return h.db.Close() }

func (h *helper) Query(f func(*sqlx.DB) error) error { return f(h.db) }

func (h *helper) QueryTx(f func(*sqlx.Tx) error) error {
	tx, err := h.db.Beginx()
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func dataSource(driver, host, port, user, password, dbName string) (string, error) {
	switch driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8&parseTime=true",
			user, password, host, port, dbName), nil
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable password=%s",
			host, port, user, dbName, password), nil
	case "mssql":
		return fmt.Sprintf("server=%s;user id=%s;password=%s;port=%s;database=%s",
			host, user, password, port, dbName), nil
	default:
		return "", fmt.Errorf("unsupported driver %s", driver)
	}
}

// Open connects the given driver ( mysql, postgres or mssql ) and registers
// the pool for shutdown.
func Open(driver, host, port, user, password, dbName string) (SqlDB, error) {
	source, err := dataSource(driver, host, port, user, password, dbName)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Connect(driver, source)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(50)
	h := &helper{db: db, driver: driver}
	cleaner.Register(h)
	return h, nil
}
