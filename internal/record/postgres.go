package record

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dnswd/cukai"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS tax_records (
	id          BIGSERIAL PRIMARY KEY,
	user_id     TEXT NOT NULL,
	ic_number   TEXT NOT NULL,
	income      NUMERIC(16,2) NOT NULL,
	tax_relief  NUMERIC(16,2) NOT NULL,
	tax_payable NUMERIC(16,2) NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertSQL = `INSERT INTO tax_records (user_id, ic_number, income, tax_relief, tax_payable)
	VALUES ($1, $2, $3, $4, $5)`

const selectSQL = `SELECT user_id, ic_number, income, tax_relief, tax_payable
	FROM tax_records ORDER BY id`

// OpenPostgres connects with a lib/pq DSN and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// PostgresStore keeps records in the tax_records table, creating it on
// first use.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger

	mu    sync.Mutex
	ready bool
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) ensureTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create tax_records: %w", err)
	}
	s.ready = true
	s.logger.Debug("tax_records table ready")
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, r cukai.Record) error {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, insertSQL,
		r.UserID, r.ICNumber, r.Income.Fixed(), r.TaxRelief.Fixed(), r.TaxPayable.Fixed())
	if err != nil {
		s.logger.Error("insert record failed", zap.String("user_id", r.UserID), zap.Error(err))
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReadAll(ctx context.Context) ([]cukai.Record, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, selectSQL)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []cukai.Record
	for rows.Next() {
		var (
			r                       cukai.Record
			income, relief, payable decimal.Decimal
		)
		if err := rows.Scan(&r.UserID, &r.ICNumber, &income, &relief, &payable); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		r.Income = cukai.NewMoney(income)
		r.TaxRelief = cukai.NewMoney(relief)
		r.TaxPayable = cukai.NewMoney(payable)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
