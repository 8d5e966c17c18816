package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"marketsim/pkg/ticks"
)

// Store persists a run's event stream to SQLite so it can be inspected
// and replayed offline.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the run database at dbPath with WAL
// mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seed INTEGER NOT NULL,
			horizon INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create runs table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			seq INTEGER NOT NULL,
			kind INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create events table: %w", err)
	}

	return &Store{db: db}, nil
}

// BeginRun registers a run and returns its id for event writes.
func (s *Store) BeginRun(ctx context.Context, seed int64, horizon ticks.Time, createdAt int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (seed, horizon, created_at) VALUES (?, ?, ?)",
		seed, horizon.Ticks(), createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return res.LastInsertId()
}

// Recorder returns a bus subscriber appending every event to the run.
// Write errors are returned through errFn since subscribers cannot fail;
// pass nil to drop them.
func (s *Store) Recorder(ctx context.Context, runID int64, errFn func(error)) func(Event) {
	var seq int64
	return func(ev Event) {
		seq++
		if err := s.saveEvent(ctx, runID, seq, ev); err != nil && errFn != nil {
			errFn(err)
		}
	}
}

func (s *Store) saveEvent(ctx context.Context, runID, seq int64, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO events (run_id, seq, kind, ts, payload) VALUES (?, ?, ?, ?, ?)",
		runID, seq, int(ev.EventKind()), ev.EventTime().Ticks(), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// LoadEvents returns the run's events in emission order.
func (s *Store) LoadEvents(ctx context.Context, runID int64) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, payload FROM events WHERE run_id = ? ORDER BY seq ASC",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var kind int
		var payload []byte
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev, err := decodeEvent(Kind(kind), payload)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return events, nil
}

// LastRun returns the id of the most recent run, 0 when the store is empty.
func (s *Store) LastRun(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(id) FROM runs").Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to get last run: %w", err)
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func decodeEvent(kind Kind, payload []byte) (Event, error) {
	var ev Event
	var err error
	switch kind {
	case KindTransaction:
		var e TransactionEvent
		err = json.Unmarshal(payload, &e)
		ev = e
	case KindSpread, KindMidquote, KindBid, KindAsk:
		var e QuoteSample
		err = json.Unmarshal(payload, &e)
		e.Kind = kind
		ev = e
	case KindNBBOSpread:
		var e NBBOSpreadSample
		err = json.Unmarshal(payload, &e)
		ev = e
	case KindFundamental:
		var e FundamentalSample
		err = json.Unmarshal(payload, &e)
		ev = e
	case KindPayoff:
		var e PayoffEvent
		err = json.Unmarshal(payload, &e)
		ev = e
	default:
		return nil, fmt.Errorf("unknown event kind %d", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", kind, err)
	}
	return ev, nil
}
