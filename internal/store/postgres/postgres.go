// Package postgres stores indicator series in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"macrocollector/internal/model"
	"macrocollector/internal/retry"
	"macrocollector/internal/store"
)

const defaultConnectTimeout = 20 * time.Second

type Config struct {
	DSN            string
	ConnectTimeout time.Duration
	MaxConns       int32
	Retry          retry.Config
}

type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New opens the pool and waits until the server answers a ping. The whole
// attempt, retries included, is bounded by ConnectTimeout.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DSN == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 2
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultConfig()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = 0
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	connCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	var pool *pgxpool.Pool
	err = retry.WithBackoff(connCtx, cfg.Retry, logger, "postgres_connection", func() error {
		candidate, openErr := pgxpool.NewWithConfig(connCtx, poolConfig)
		if openErr != nil {
			return retry.Permanent(fmt.Errorf("create pool: %w", openErr))
		}
		if pingErr := candidate.Ping(connCtx); pingErr != nil {
			candidate.Close()
			return fmt.Errorf("ping: %w", pingErr)
		}
		pool = candidate
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	logger.Info("postgres pool ready",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_conns", poolConfig.MaxConns))

	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *Store) EnsureTable(ctx context.Context, table store.Table) error {
	if err := table.Validate(); err != nil {
		return err
	}
	statement := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		date DATE PRIMARY KEY,
		value %s NOT NULL
	)`, pgx.Identifier{table.Name}.Sanitize(), table.Precision.SQLType())
	if _, err := s.pool.Exec(ctx, statement); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", table.Name, err)
	}
	return nil
}

// UpsertBatch sends every row of the batch in one round trip inside a
// transaction. Rows whose stored value is unchanged are not rewritten.
func (s *Store) UpsertBatch(ctx context.Context, table store.Table, observations []model.Observation) (int64, error) {
	if len(observations) == 0 {
		return 0, nil
	}
	if err := store.ValidateTableName(table.Name); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s AS t (date, value) VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE SET value = EXCLUDED.value
		WHERE t.value IS DISTINCT FROM EXCLUDED.value
	`, pgx.Identifier{table.Name}.Sanitize())

	var affected int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, observation := range observations {
			batch.Queue(query, observation.ReferenceDate.In(time.UTC), observation.Value)
		}

		results := tx.SendBatch(ctx, batch)
		for _, observation := range observations {
			tag, execErr := results.Exec()
			if execErr != nil {
				_ = results.Close()
				return fmt.Errorf("upsert %s %s: %w", table.Name, observation.ReferenceDate, execErr)
			}
			affected += tag.RowsAffected()
		}
		return results.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("postgres: %w", err)
	}
	return affected, nil
}

func (s *Store) LoadSeries(ctx context.Context, name string) (model.Series, error) {
	if err := store.ValidateTableName(name); err != nil {
		return model.Series{}, err
	}

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)`,
		name).Scan(&exists)
	if err != nil {
		return model.Series{}, fmt.Errorf("postgres: %w", err)
	}
	if !exists {
		return model.Series{}, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT date, value::float8 FROM %s ORDER BY date`, pgx.Identifier{name}.Sanitize()))
	if err != nil {
		return model.Series{}, fmt.Errorf("postgres: %w", err)
	}

	observations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Observation, error) {
		var (
			date  time.Time
			value float64
		)
		if err := row.Scan(&date, &value); err != nil {
			return model.Observation{}, err
		}
		return model.Observation{ReferenceDate: civil.DateOf(date), Value: value}, nil
	})
	if err != nil {
		return model.Series{}, fmt.Errorf("postgres: load %s: %w", name, err)
	}
	if observations == nil {
		observations = []model.Observation{}
	}
	return model.Series{Name: name, Observations: observations}, nil
}

var _ store.Store = (*Store)(nil)
