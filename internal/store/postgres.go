package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hmoscout/ingest-cli/internal/model"
	"github.com/hmoscout/ingest-cli/internal/normalize"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, mainly for tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS properties (
	id               UUID PRIMARY KEY,
	postcode         TEXT NOT NULL,
	uprn             TEXT,
	external_ids     JSONB NOT NULL DEFAULT '{}',
	data             JSONB NOT NULL,
	first_seen_at    TIMESTAMPTZ NOT NULL,
	last_enriched_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS ingestion_runs (
	id         UUID PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	sources    JSONB,
	error      TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_properties_postcode ON properties(postcode);
CREATE INDEX IF NOT EXISTS idx_properties_uprn ON properties(uprn);
CREATE INDEX IF NOT EXISTS idx_properties_external_ids ON properties USING gin(external_ids);
CREATE INDEX IF NOT EXISTS idx_ingestion_runs_started_at ON ingestion_runs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, source, externalID string) (*model.StoredProperty, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM properties WHERE external_ids->>$1 = $2`,
		source, externalID,
	)
	return scanPgProperty(row)
}

func (s *PostgresStore) FindByUPRN(ctx context.Context, uprn string) (*model.StoredProperty, error) {
	row := s.pool.QueryRow(ctx, `SELECT data FROM properties WHERE uprn = $1`, uprn)
	return scanPgProperty(row)
}

func (s *PostgresStore) FindCandidates(ctx context.Context, postcode string) ([]model.StoredProperty, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM properties WHERE postcode = $1 ORDER BY first_seen_at`,
		normalize.Postcode(postcode),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find candidates")
	}
	defer rows.Close()

	var out []model.StoredProperty
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		var p model.StoredProperty
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal candidate")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Upsert(ctx context.Context, patch model.Patch) (*model.StoredProperty, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin upsert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var record model.StoredProperty
	create := patch.PropertyID == ""
	if create {
		record = model.StoredProperty{
			ID:          uuid.New().String(),
			FirstSeenAt: time.Now().UTC(),
		}
	} else {
		var data []byte
		err = tx.QueryRow(ctx, `SELECT data FROM properties WHERE id = $1 FOR UPDATE`, patch.PropertyID).Scan(&data)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: property %s not found", patch.PropertyID)
		}
		if err != nil {
			return nil, eris.Wrap(err, "postgres: load for upsert")
		}
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal for upsert")
		}
	}

	record.Apply(patch)
	record.Postcode = normalize.Postcode(record.Postcode)

	data, err := json.Marshal(record)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal property")
	}
	extIDs := []byte("{}")
	if record.ExternalIDs != nil {
		extIDs, err = json.Marshal(record.ExternalIDs)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal external ids")
		}
	}

	if create {
		_, err = tx.Exec(ctx, `
			INSERT INTO properties (id, postcode, uprn, external_ids, data, first_seen_at, last_enriched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			record.ID, record.Postcode, nullIfEmpty(record.UPRN), extIDs, data,
			record.FirstSeenAt, record.LastEnrichedAt,
		)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE properties SET postcode = $1, uprn = $2, external_ids = $3, data = $4, last_enriched_at = $5
			WHERE id = $6`,
			record.Postcode, nullIfEmpty(record.UPRN), extIDs, data,
			record.LastEnrichedAt, record.ID,
		)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: write property")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit upsert")
	}
	return &record, nil
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*model.IngestionRun, error) {
	run := &model.IngestionRun{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingestion_runs (id, status, started_at) VALUES ($1, $2, $3)`,
		run.ID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, run *model.IngestionRun) error {
	sources, err := json.Marshal(run.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run sources")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingestion_runs SET status = $1, sources = $2, error = $3, ended_at = $4 WHERE id = $5`,
		string(run.Status), sources, nullIfEmpty(run.Error), run.EndedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", run.ID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.IngestionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, sources, error, started_at, ended_at
		 FROM ingestion_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.IngestionRun
	for rows.Next() {
		var run model.IngestionRun
		var sources []byte
		var errStr *string
		var ended *time.Time
		if err := rows.Scan(&run.ID, &run.Status, &sources, &errStr, &run.StartedAt, &ended); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &run.Sources); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run sources")
			}
		}
		if errStr != nil {
			run.Error = *errStr
		}
		run.EndedAt = ended
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanPgProperty(row pgx.Row) (*model.StoredProperty, error) {
	var data []byte
	err := row.Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan property")
	}
	var p model.StoredProperty
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal property")
	}
	return &p, nil
}
