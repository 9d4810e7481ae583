// Package crashdump persists a snapshot of every process that exits with an
// exception, so a crash can be inspected after the runtime is gone.
package crashdump

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/enigma/vm"
	"github.com/chazu/enigma/vm/snapshot"
)

var log = commonlog.GetLogger("enigma.crashdump")

// ErrNotFound indicates the requested dump doesn't exist.
var ErrNotFound = errors.New("crashdump: not found")

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Dump is one stored crash.
type Dump struct {
	ID       uuid.UUID
	PID      uint32
	Module   string
	Class    string
	Reason   string
	TakenAt  time.Time
	Snapshot *snapshot.Snapshot // nil in List results
}

// Store is a crash dump database.
type Store struct {
	db      *sql.DB
	dialect dialect
}

type dialect struct {
	schema []string
	insert string
	list   string
	get    string
}

var dialects = map[string]dialect{
	DriverSQLite: {
		schema: []string{
			"PRAGMA busy_timeout = 5000",
			`CREATE TABLE IF NOT EXISTS crash_dumps (
				id TEXT PRIMARY KEY,
				pid INTEGER NOT NULL,
				module TEXT NOT NULL,
				class TEXT NOT NULL,
				reason TEXT NOT NULL,
				taken_at TIMESTAMP NOT NULL,
				snapshot BLOB NOT NULL
			)`,
		},
		insert: "INSERT INTO crash_dumps (id, pid, module, class, reason, taken_at, snapshot) VALUES (?, ?, ?, ?, ?, ?, ?)",
		list:   "SELECT id, pid, module, class, reason, taken_at FROM crash_dumps ORDER BY taken_at DESC LIMIT ?",
		get:    "SELECT id, pid, module, class, reason, taken_at, snapshot FROM crash_dumps WHERE id = ?",
	},
	DriverPostgres: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS crash_dumps (
				id UUID PRIMARY KEY,
				pid BIGINT NOT NULL,
				module TEXT NOT NULL,
				class TEXT NOT NULL,
				reason TEXT NOT NULL,
				taken_at TIMESTAMPTZ NOT NULL,
				snapshot BYTEA NOT NULL
			)`,
		},
		insert: "INSERT INTO crash_dumps (id, pid, module, class, reason, taken_at, snapshot) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		list:   "SELECT id, pid, module, class, reason, taken_at FROM crash_dumps ORDER BY taken_at DESC LIMIT $1",
		get:    "SELECT id, pid, module, class, reason, taken_at, snapshot FROM crash_dumps WHERE id = $1",
	},
}

// Open connects to a crash dump database and creates its table if needed.
// driver is DriverSQLite (dsn is a file path) or DriverPostgres (dsn is a
// connection string).
func Open(driver, dsn string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("crashdump: unknown driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("crashdump: opening database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer at a time; exit hooks run on many workers.
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("crashdump: creating schema: %w", err)
		}
	}

	log.Info("crash dump store opened", "driver", driver)
	return &Store{db: db, dialect: d}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores a snapshot of a crashed process and returns its ID.
func (s *Store) Save(ctx context.Context, snap *snapshot.Snapshot) (uuid.UUID, error) {
	data, err := snapshot.Marshal(snap)
	if err != nil {
		return uuid.Nil, fmt.Errorf("crashdump: encoding snapshot: %w", err)
	}

	var class, reason string
	if snap.Exception != nil {
		class = snap.Exception.Class
		reason = snap.Exception.Reason.Text
	}

	id := uuid.New()
	_, err = s.db.ExecContext(ctx, s.dialect.insert,
		id.String(), int64(snap.PID), snap.Module, class, reason, snap.TakenAt, data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("crashdump: saving dump: %w", err)
	}
	return id, nil
}

// List returns the newest dumps first, without their snapshots.
func (s *Store) List(ctx context.Context, limit int) ([]Dump, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.list, limit)
	if err != nil {
		return nil, fmt.Errorf("crashdump: listing dumps: %w", err)
	}
	defer rows.Close()

	var dumps []Dump
	for rows.Next() {
		var (
			d   Dump
			id  string
			pid int64
		)
		if err := rows.Scan(&id, &pid, &d.Module, &d.Class, &d.Reason, &d.TakenAt); err != nil {
			return nil, fmt.Errorf("crashdump: scanning dump: %w", err)
		}
		if d.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("crashdump: bad dump id %q: %w", id, err)
		}
		d.PID = uint32(pid)
		dumps = append(dumps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("crashdump: listing dumps: %w", err)
	}
	return dumps, nil
}

// Get returns one dump with its snapshot.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Dump, error) {
	var (
		d    Dump
		sid  string
		pid  int64
		data []byte
	)
	err := s.db.QueryRowContext(ctx, s.dialect.get, id.String()).
		Scan(&sid, &pid, &d.Module, &d.Class, &d.Reason, &d.TakenAt, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("crashdump: querying dump: %w", err)
	}

	d.ID = id
	d.PID = uint32(pid)
	if d.Snapshot, err = snapshot.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("crashdump: dump %s: %w", id, err)
	}
	return &d, nil
}

// Hook returns an exit hook that stores a dump for every abnormal exit.
// Failures are logged; they never stop the process from exiting.
func (s *Store) Hook() vm.ExitHook {
	return func(st *vm.State, tok *vm.Token, exc *vm.Exception) {
		if exc == nil {
			return
		}
		snap, err := snapshot.Capture(st, tok)
		if err != nil {
			log.Error("cannot capture crashed process", "pid", tok.Process().PID(), "error", err.Error())
			return
		}
		id, err := s.Save(context.Background(), snap)
		if err != nil {
			log.Error("cannot store crash dump", "pid", snap.PID, "error", err.Error())
			return
		}
		log.Info("crash dump stored", "pid", snap.PID, "id", id.String())
	}
}
