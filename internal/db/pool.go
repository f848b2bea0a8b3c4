package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/config"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/globaltime"
)

var (
	ErrNoRows = sql.ErrNoRows

	errPoolNotReady = errors.New("database pool is not initialized")
)

type TxOptions struct{}

type CommandTag struct {
	rowsAffected int64
}

func (c CommandTag) RowsAffected() int64 { return c.rowsAffected }

// Row is a single-row result. A Row without an underlying result scans as
// ErrNoRows.
type Row struct {
	row *sql.Row
}

func (r *Row) Scan(dest ...any) error {
	if r == nil || r.row == nil {
		return ErrNoRows
	}
	return r.row.Scan(dest...)
}

type Rows struct {
	rows *sql.Rows
}

func (r *Rows) Next() bool {
	return r != nil && r.rows != nil && r.rows.Next()
}

func (r *Rows) Scan(dest ...any) error {
	if r == nil || r.rows == nil {
		return ErrNoRows
	}
	return r.rows.Scan(dest...)
}

func (r *Rows) Err() error {
	if r == nil || r.rows == nil {
		return nil
	}
	return r.rows.Err()
}

func (r *Rows) Close() {
	if r != nil && r.rows != nil {
		_ = r.rows.Close()
	}
}

// Querier is implemented by *Pool and by open transactions, so the query
// helpers in this package work in either.
type Querier interface {
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
	Exec(ctx context.Context, query string, args ...any) (CommandTag, error)
}

type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// session runs raw SQL against a gorm handle, which is either the pool
// itself or a transaction started from it.
type session struct {
	gdb *gorm.DB
}

func (s session) QueryRow(ctx context.Context, query string, args ...any) *Row {
	return &Row{row: s.gdb.WithContext(ctx).Raw(query, args...).Row()}
}

func (s session) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	rows, err := s.gdb.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

func (s session) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	res := s.gdb.WithContext(ctx).Exec(query, args...)
	return CommandTag{rowsAffected: res.RowsAffected}, res.Error
}

type txSession struct {
	session
}

func (t txSession) Commit(ctx context.Context) error {
	return t.gdb.WithContext(ctx).Commit().Error
}

func (t txSession) Rollback(ctx context.Context) error {
	return t.gdb.WithContext(ctx).Rollback().Error
}

// Pool owns the Postgres connection pool used by every store in the
// service. It is safe for concurrent use.
type Pool struct {
	gdb   *gorm.DB
	sqlDB *sql.DB
}

// NewPool connects, verifies the connection and brings the schema up to
// date before returning.
func NewPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Pool, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:  newGormLogger(logger, resolveGormLogLevel(cfg.LogLevel, cfg.Environment)),
		NowFunc: globaltime.UTC,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}
	configureConnections(sqlDB, cfg.DBMinConns, cfg.DBMaxConns)

	pool := &Pool{gdb: gdb, sqlDB: sqlDB}
	if err := pool.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := pool.autoMigrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}
	return pool, nil
}

func configureConnections(sqlDB *sql.DB, minConns, maxConns int32) {
	maxOpen := int(maxConns)
	if maxOpen <= 0 {
		maxOpen = 8
	}
	idle := min(int(minConns), maxOpen)
	if idle < 1 {
		idle = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(idle)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
}

func (p *Pool) session() (session, error) {
	if p == nil || p.gdb == nil {
		return session{}, errPoolNotReady
	}
	return session{gdb: p.gdb}, nil
}

func (p *Pool) BeginTx(ctx context.Context, _ TxOptions) (Tx, error) {
	s, err := p.session()
	if err != nil {
		return nil, err
	}
	tx := s.gdb.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return txSession{session{gdb: tx}}, nil
}

func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *Row {
	s, err := p.session()
	if err != nil {
		return &Row{}
	}
	return s.QueryRow(ctx, query, args...)
}

func (p *Pool) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	s, err := p.session()
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, query, args...)
}

func (p *Pool) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	s, err := p.session()
	if err != nil {
		return CommandTag{}, err
	}
	return s.Exec(ctx, query, args...)
}

// Ping checks connectivity without running migrations.
func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.sqlDB == nil {
		return errPoolNotReady
	}
	return p.sqlDB.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

// withTx commits only when fn returns nil. Rollback after a successful
// commit is a no-op.
func (p *Pool) withTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows)
}
