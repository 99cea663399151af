// Package storage provides SQLite-based persistence of the save slot and the
// archive of past worlds.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/user/silent-god/internal/interfaces"
	"github.com/user/silent-god/internal/types"
)

// DB wraps a SQLite connection
type DB struct {
	conn *sqlx.DB
}

var _ interfaces.Store = (*DB)(nil)

// Open opens or creates a SQLite database at the given path
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single writer keeps SQLite free of lock contention
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS save_slot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		stats_json TEXT NOT NULL,
		factions_json TEXT NOT NULL,
		figures_json TEXT NOT NULL,
		logs_json TEXT NOT NULL,
		pending_json TEXT NOT NULL DEFAULT 'null',
		last_saved INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS archives (
		id TEXT PRIMARY KEY,
		ended_at INTEGER NOT NULL,
		final_year INTEGER NOT NULL,
		final_population INTEGER NOT NULL,
		final_era TEXT NOT NULL,
		dominant_faction TEXT NOT NULL,
		summary TEXT NOT NULL,
		figures_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_archives_ended_at ON archives(ended_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type slotRow struct {
	StatsJSON    string `db:"stats_json"`
	FactionsJSON string `db:"factions_json"`
	FiguresJSON  string `db:"figures_json"`
	LogsJSON     string `db:"logs_json"`
	PendingJSON  string `db:"pending_json"`
	LastSaved    int64  `db:"last_saved"`
}

type archiveRow struct {
	ID              string `db:"id"`
	EndedAt         int64  `db:"ended_at"`
	FinalYear       int    `db:"final_year"`
	FinalPopulation int    `db:"final_population"`
	FinalEra        string `db:"final_era"`
	DominantFaction string `db:"dominant_faction"`
	Summary         string `db:"summary"`
	FiguresJSON     string `db:"figures_json"`
}

// Save replaces the save slot
func (db *DB) Save(ctx context.Context, state *types.SaveState) error {
	row := slotRow{LastSaved: state.LastSaved.UnixMilli()}
	var err error
	if row.StatsJSON, err = marshal(state.Stats); err != nil {
		return err
	}
	if row.FactionsJSON, err = marshal(state.Factions); err != nil {
		return err
	}
	if row.FiguresJSON, err = marshal(state.Figures); err != nil {
		return err
	}
	if row.LogsJSON, err = marshal(state.Logs); err != nil {
		return err
	}
	if row.PendingJSON, err = marshal(state.PendingDecision); err != nil {
		return err
	}

	_, err = db.conn.NamedExecContext(ctx, `INSERT INTO save_slot
		(id, stats_json, factions_json, figures_json, logs_json, pending_json, last_saved)
		VALUES (1, :stats_json, :factions_json, :figures_json, :logs_json, :pending_json, :last_saved)
		ON CONFLICT(id) DO UPDATE SET
			stats_json = excluded.stats_json,
			factions_json = excluded.factions_json,
			figures_json = excluded.figures_json,
			logs_json = excluded.logs_json,
			pending_json = excluded.pending_json,
			last_saved = excluded.last_saved`, row)
	if err != nil {
		return fmt.Errorf("save slot: %w", err)
	}
	return nil
}

// Load reads the save slot. An empty slot yields nil and no error.
func (db *DB) Load(ctx context.Context) (*types.SaveState, error) {
	var row slotRow
	err := db.conn.GetContext(ctx, &row, `SELECT stats_json, factions_json, figures_json,
		logs_json, pending_json, last_saved FROM save_slot WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}

	state := &types.SaveState{
		Factions:  []types.Faction{},
		Figures:   []types.Person{},
		Logs:      []types.LogEntry{},
		LastSaved: time.UnixMilli(row.LastSaved).UTC(),
	}
	for _, field := range []struct {
		raw string
		dst interface{}
	}{
		{row.StatsJSON, &state.Stats},
		{row.FactionsJSON, &state.Factions},
		{row.FiguresJSON, &state.Figures},
		{row.LogsJSON, &state.Logs},
		{row.PendingJSON, &state.PendingDecision},
	} {
		if err := json.Unmarshal([]byte(field.raw), field.dst); err != nil {
			return nil, fmt.Errorf("decode slot: %w", err)
		}
	}

	return state, nil
}

// Clear empties the save slot
func (db *DB) Clear(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM save_slot"); err != nil {
		return fmt.Errorf("clear slot: %w", err)
	}
	return nil
}

// Archive records a concluded world
func (db *DB) Archive(ctx context.Context, world types.PastWorld) error {
	figures, err := marshal(world.FinalFigures)
	if err != nil {
		return err
	}

	_, err = db.conn.NamedExecContext(ctx, `INSERT INTO archives
		(id, ended_at, final_year, final_population, final_era, dominant_faction, summary, figures_json)
		VALUES (:id, :ended_at, :final_year, :final_population, :final_era, :dominant_faction, :summary, :figures_json)`,
		archiveRow{
			ID:              world.ID,
			EndedAt:         world.EndedAt.UnixMilli(),
			FinalYear:       world.FinalYear,
			FinalPopulation: world.FinalPopulation,
			FinalEra:        world.FinalEra,
			DominantFaction: world.DominantFaction,
			Summary:         world.Summary,
			FiguresJSON:     figures,
		})
	if err != nil {
		return fmt.Errorf("insert archive %s: %w", world.ID, err)
	}
	return nil
}

// ListArchives returns every archived world, newest first
func (db *DB) ListArchives(ctx context.Context) ([]types.PastWorld, error) {
	var rows []archiveRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT * FROM archives ORDER BY ended_at DESC"); err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}

	worlds := make([]types.PastWorld, 0, len(rows))
	for _, r := range rows {
		world := types.PastWorld{
			ID:              r.ID,
			EndedAt:         time.UnixMilli(r.EndedAt).UTC(),
			FinalYear:       r.FinalYear,
			FinalPopulation: r.FinalPopulation,
			FinalEra:        r.FinalEra,
			DominantFaction: r.DominantFaction,
			Summary:         r.Summary,
			FinalFigures:    []types.Person{},
		}
		if err := json.Unmarshal([]byte(r.FiguresJSON), &world.FinalFigures); err != nil {
			return nil, fmt.Errorf("decode archive %s: %w", r.ID, err)
		}
		worlds = append(worlds, world)
	}
	return worlds, nil
}

func marshal(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return string(data), nil
}
