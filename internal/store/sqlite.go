package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hmoscout/ingest-cli/internal/model"
	"github.com/hmoscout/ingest-cli/internal/normalize"
)

// SQLiteStore implements Store using modernc.org/sqlite. The full record
// is stored as JSON alongside the columns the pipeline filters on.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS properties (
	id               TEXT PRIMARY KEY,
	postcode         TEXT NOT NULL,
	uprn             TEXT,
	external_ids     TEXT NOT NULL DEFAULT '{}',
	data             TEXT NOT NULL,
	first_seen_at    DATETIME NOT NULL,
	last_enriched_at DATETIME
);

CREATE TABLE IF NOT EXISTS ingestion_runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	sources    TEXT,
	error      TEXT,
	started_at DATETIME NOT NULL,
	ended_at   DATETIME
);

CREATE INDEX IF NOT EXISTS idx_properties_postcode ON properties(postcode);
CREATE INDEX IF NOT EXISTS idx_properties_uprn ON properties(uprn);
CREATE INDEX IF NOT EXISTS idx_ingestion_runs_started_at ON ingestion_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FindByExternalID(ctx context.Context, source, externalID string) (*model.StoredProperty, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM properties WHERE json_extract(external_ids, '$."' || ?1 || '"') = ?2`,
		source, externalID,
	)
	return scanProperty(row)
}

func (s *SQLiteStore) FindByUPRN(ctx context.Context, uprn string) (*model.StoredProperty, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM properties WHERE uprn = ?`, uprn)
	return scanProperty(row)
}

func (s *SQLiteStore) FindCandidates(ctx context.Context, postcode string) ([]model.StoredProperty, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM properties WHERE postcode = ? ORDER BY first_seen_at`,
		normalize.Postcode(postcode),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find candidates")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.StoredProperty
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		var p model.StoredProperty
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal candidate")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Upsert(ctx context.Context, patch model.Patch) (*model.StoredProperty, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	var record model.StoredProperty
	create := patch.PropertyID == ""
	if create {
		record = model.StoredProperty{
			ID:          uuid.New().String(),
			FirstSeenAt: time.Now().UTC(),
		}
	} else {
		var data []byte
		err = tx.QueryRowContext(ctx, `SELECT data FROM properties WHERE id = ?`, patch.PropertyID).Scan(&data)
		if err == sql.ErrNoRows {
			return nil, eris.Errorf("sqlite: property %s not found", patch.PropertyID)
		}
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: load for upsert")
		}
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal for upsert")
		}
	}

	record.Apply(patch)
	record.Postcode = normalize.Postcode(record.Postcode)

	data, err := json.Marshal(record)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal property")
	}
	extIDs, err := json.Marshal(record.ExternalIDs)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal external ids")
	}
	if record.ExternalIDs == nil {
		extIDs = []byte("{}")
	}

	if create {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO properties (id, postcode, uprn, external_ids, data, first_seen_at, last_enriched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.ID, record.Postcode, nullIfEmpty(record.UPRN), string(extIDs), string(data),
			record.FirstSeenAt, record.LastEnrichedAt,
		)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE properties SET postcode = ?, uprn = ?, external_ids = ?, data = ?, last_enriched_at = ?
			WHERE id = ?`,
			record.Postcode, nullIfEmpty(record.UPRN), string(extIDs), string(data),
			record.LastEnrichedAt, record.ID,
		)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: write property")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit upsert")
	}
	return &record, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.IngestionRun, error) {
	run := &model.IngestionRun{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestion_runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, run *model.IngestionRun) error {
	sources, err := json.Marshal(run.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run sources")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingestion_runs SET status = ?, sources = ?, error = ?, ended_at = ? WHERE id = ?`,
		string(run.Status), string(sources), nullIfEmpty(run.Error), run.EndedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", run.ID)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return eris.Errorf("sqlite: run %s not found", run.ID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.IngestionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, sources, error, started_at, ended_at
		 FROM ingestion_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.IngestionRun
	for rows.Next() {
		var run model.IngestionRun
		var sources, errStr sql.NullString
		var ended sql.NullTime
		if err := rows.Scan(&run.ID, &run.Status, &sources, &errStr, &run.StartedAt, &ended); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if sources.Valid && sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &run.Sources); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run sources")
			}
		}
		if errStr.Valid {
			run.Error = errStr.String
		}
		if ended.Valid {
			t := ended.Time
			run.EndedAt = &t
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// scanProperty reads a single data column, mapping no-rows to (nil, nil).
func scanProperty(row *sql.Row) (*model.StoredProperty, error) {
	var data []byte
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan property")
	}
	var p model.StoredProperty
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal property")
	}
	return &p, nil
}

// nullIfEmpty lets empty strings store as NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
