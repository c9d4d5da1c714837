package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/civil"
	_ "modernc.org/sqlite"

	"macrocollector/internal/model"
	"macrocollector/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) EnsureTable(ctx context.Context, table store.Table) error {
	if err := table.Validate(); err != nil {
		return err
	}
	statement := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		date TEXT PRIMARY KEY,
		value %s NOT NULL
	)`, quote(table.Name), table.Precision.SQLType())
	if _, err := s.db.ExecContext(ctx, statement); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", table.Name, err)
	}
	return nil
}

// UpsertBatch applies observations in one transaction. Rows whose stored
// value already matches are left untouched and do not count as affected.
func (s *Store) UpsertBatch(ctx context.Context, table store.Table, observations []model.Observation) (affected int64, err error) {
	if len(observations) == 0 {
		return 0, nil
	}
	if err := store.ValidateTableName(table.Name); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (date, value) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET
			value = excluded.value
		WHERE value IS NOT excluded.value
	`, quote(table.Name)))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, observation := range observations {
		result, execErr := stmt.ExecContext(ctx, observation.ReferenceDate.String(), observation.Value)
		if execErr != nil {
			err = fmt.Errorf("sqlite: upsert %s %s: %w", table.Name, observation.ReferenceDate, execErr)
			return 0, err
		}
		rows, rowsErr := result.RowsAffected()
		if rowsErr != nil {
			err = rowsErr
			return 0, err
		}
		affected += rows
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return affected, nil
}

func (s *Store) LoadSeries(ctx context.Context, name string) (model.Series, error) {
	if err := store.ValidateTableName(name); err != nil {
		return model.Series{}, err
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&exists)
	if err != nil {
		return model.Series{}, err
	}
	if exists == 0 {
		return model.Series{}, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT date, value FROM %s ORDER BY date`, quote(name)))
	if err != nil {
		return model.Series{}, err
	}
	defer rows.Close()

	series := model.Series{Name: name, Observations: []model.Observation{}}
	for rows.Next() {
		var (
			date  string
			value float64
		)
		if err := rows.Scan(&date, &value); err != nil {
			return model.Series{}, err
		}
		referenceDate, err := civil.ParseDate(date)
		if err != nil {
			return model.Series{}, fmt.Errorf("sqlite: %s: stored date %q: %w", name, date, err)
		}
		series.Observations = append(series.Observations, model.Observation{ReferenceDate: referenceDate, Value: value})
	}
	if err := rows.Err(); err != nil {
		return model.Series{}, err
	}
	return series, nil
}

func (s *Store) configure() error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA busy_timeout = 5000;`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return fmt.Errorf("sqlite: %s: %w", statement, err)
		}
	}

	return nil
}

func quote(name string) string {
	return `"` + name + `"`
}

var _ store.Store = (*Store)(nil)
