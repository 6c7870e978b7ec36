// Package watchlist persists screening runs and orchestrates them end to
// end. Snapshots are append-only: a run writes one snapshot plus its
// movement events and never mutates history.
package watchlist

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/steward-labs/steward/internal/database"
	"github.com/steward-labs/steward/internal/domain"
	"github.com/steward-labs/steward/internal/modules/tiering"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	taken_at INTEGER NOT NULL,
	regime TEXT NOT NULL DEFAULT '',
	regime_confidence TEXT NOT NULL DEFAULT '',
	requested INTEGER NOT NULL DEFAULT 0,
	fetched INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	kept INTEGER NOT NULL DEFAULT 0,
	low_confidence INTEGER NOT NULL DEFAULT 0,
	inconsistent INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots(taken_at);

CREATE TABLE IF NOT EXISTS snapshot_entries (
	snapshot_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	tier INTEGER NOT NULL,
	quality TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	target_entry_price REAL,
	current_price REAL,
	price_gap_pct REAL,
	approaching INTEGER NOT NULL DEFAULT 0,
	staged_entry BLOB,
	PRIMARY KEY (snapshot_id, position),
	FOREIGN KEY (snapshot_id) REFERENCES snapshots(id)
);

CREATE TABLE IF NOT EXISTS movements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	snapshot_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	change_type TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	previous_tier INTEGER,
	current_tier INTEGER,
	FOREIGN KEY (snapshot_id) REFERENCES snapshots(id)
);
CREATE INDEX IF NOT EXISTS idx_movements_snapshot ON movements(snapshot_id);
`

// RunMeta is the per-run bookkeeping stored next to a snapshot.
type RunMeta struct {
	SnapshotID       string    `json:"snapshot_id"`
	TakenAt          time.Time `json:"taken_at"`
	Regime           string    `json:"regime"`
	RegimeConfidence string    `json:"regime_confidence"`
	Requested        int       `json:"requested"`
	Fetched          int       `json:"fetched"`
	Skipped          int       `json:"skipped"`
	Failed           int       `json:"failed"`
	Kept             int       `json:"kept"`
	LowConfidence    int       `json:"low_confidence"`
	Inconsistent     int       `json:"inconsistent"`
}

// Repository stores watchlist snapshots and movement events.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a watchlist repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "watchlist_repo").Logger(),
	}
}

// InitSchema creates the watchlist tables if they do not exist.
func (r *Repository) InitSchema() error {
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize watchlist schema: %w", err)
	}
	return nil
}

// SaveRun persists one complete run atomically: metadata, every
// assignment in snapshot order, and the movement events against the
// previous snapshot.
func (r *Repository) SaveRun(snap *tiering.Snapshot, meta RunMeta, movements []tiering.MovementEvent) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO snapshots (id, taken_at, regime, regime_confidence,
				requested, fetched, skipped, failed, kept, low_confidence, inconsistent)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, snap.TakenAt.Unix(), meta.Regime, meta.RegimeConfidence,
			meta.Requested, meta.Fetched, meta.Skipped, meta.Failed,
			meta.Kept, meta.LowConfidence, meta.Inconsistent,
		)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot %s: %w", snap.ID, err)
		}

		for i := range snap.Assignments {
			a := &snap.Assignments[i]

			var staged []byte
			if len(a.StagedEntry) > 0 {
				staged, err = msgpack.Marshal(a.StagedEntry)
				if err != nil {
					return fmt.Errorf("failed to marshal staged entry for %s: %w", a.Symbol, err)
				}
			}

			_, err = tx.Exec(`
				INSERT INTO snapshot_entries (snapshot_id, position, symbol, tier,
					quality, reason, target_entry_price, current_price,
					price_gap_pct, approaching, staged_entry)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				snap.ID, i, a.Symbol, int(a.Tier), string(a.Quality), a.Reason,
				a.TargetEntryPrice, a.CurrentPrice, a.PriceGapPct,
				boolToInt(a.Approaching), staged,
			)
			if err != nil {
				return fmt.Errorf("failed to insert entry %s: %w", a.Symbol, err)
			}
		}

		for i, m := range movements {
			_, err = tx.Exec(`
				INSERT INTO movements (snapshot_id, position, symbol, change_type,
					detail, previous_tier, current_tier)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				snap.ID, i, m.Symbol, string(m.Type), m.Detail,
				tierToNullable(m.PreviousTier), tierToNullable(m.CurrentTier),
			)
			if err != nil {
				return fmt.Errorf("failed to insert movement for %s: %w", m.Symbol, err)
			}
		}

		return nil
	})
}

// LatestSnapshot returns the most recent snapshot, or nil when no run has
// been persisted yet.
func (r *Repository) LatestSnapshot() (*tiering.Snapshot, error) {
	var id string
	err := r.db.QueryRow("SELECT id FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT 1").Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest snapshot: %w", err)
	}
	return r.Snapshot(id)
}

// Snapshot loads one snapshot with its assignments in stored order.
// Returns nil when the ID is unknown.
func (r *Repository) Snapshot(id string) (*tiering.Snapshot, error) {
	var takenAt int64
	err := r.db.QueryRow("SELECT taken_at FROM snapshots WHERE id = ?", id).Scan(&takenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", id, err)
	}

	snap := &tiering.Snapshot{
		ID:      id,
		TakenAt: time.Unix(takenAt, 0).UTC(),
	}

	rows, err := r.db.Query(`
		SELECT symbol, tier, quality, reason, target_entry_price,
			current_price, price_gap_pct, approaching, staged_entry
		FROM snapshot_entries WHERE snapshot_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a           tiering.TierAssignment
			tier        int
			quality     string
			approaching int
			staged      []byte
		)
		if err := rows.Scan(&a.Symbol, &tier, &quality, &a.Reason,
			&a.TargetEntryPrice, &a.CurrentPrice, &a.PriceGapPct,
			&approaching, &staged); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		a.Tier = domain.Tier(tier)
		if !a.Tier.Valid() {
			return nil, fmt.Errorf("snapshot %s entry %s has invalid tier %d", id, a.Symbol, tier)
		}
		a.Quality = domain.QualityLevel(quality)
		a.Approaching = approaching != 0
		if len(staged) > 0 {
			if err := msgpack.Unmarshal(staged, &a.StagedEntry); err != nil {
				return nil, fmt.Errorf("failed to unmarshal staged entry for %s: %w", a.Symbol, err)
			}
		}
		snap.Assignments = append(snap.Assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return snap, nil
}

// Movements returns the movement events recorded with a snapshot, in
// stored order.
func (r *Repository) Movements(snapshotID string) ([]tiering.MovementEvent, error) {
	rows, err := r.db.Query(`
		SELECT symbol, change_type, detail, previous_tier, current_tier
		FROM movements WHERE snapshot_id = ? ORDER BY position`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load movements for %s: %w", snapshotID, err)
	}
	defer rows.Close()

	var events []tiering.MovementEvent
	for rows.Next() {
		var (
			m        tiering.MovementEvent
			changeTo string
			prev     sql.NullInt64
			curr     sql.NullInt64
		)
		if err := rows.Scan(&m.Symbol, &changeTo, &m.Detail, &prev, &curr); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.Type = tiering.MovementType(changeTo)
		m.PreviousTier = nullableToTier(prev)
		m.CurrentTier = nullableToTier(curr)
		events = append(events, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movements: %w", err)
	}

	return events, nil
}

// Runs lists run metadata, newest first.
func (r *Repository) Runs(limit int) ([]RunMeta, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, taken_at, regime, regime_confidence, requested, fetched,
			skipped, failed, kept, low_confidence, inconsistent
		FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunMeta
	for rows.Next() {
		var (
			meta    RunMeta
			takenAt int64
		)
		if err := rows.Scan(&meta.SnapshotID, &takenAt, &meta.Regime,
			&meta.RegimeConfidence, &meta.Requested, &meta.Fetched,
			&meta.Skipped, &meta.Failed, &meta.Kept, &meta.LowConfidence,
			&meta.Inconsistent); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		meta.TakenAt = time.Unix(takenAt, 0).UTC()
		runs = append(runs, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func tierToNullable(t *domain.Tier) interface{} {
	if t == nil {
		return nil
	}
	return int(*t)
}

func nullableToTier(v sql.NullInt64) *domain.Tier {
	if !v.Valid {
		return nil
	}
	t := domain.Tier(v.Int64)
	return &t
}
