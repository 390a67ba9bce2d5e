package repos

import (
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"brickstock/internal/domain"
)

// InventoryRepo owns the inventory table: one row per (part_no, color_id).
type InventoryRepo struct{ q sqlx.Ext }

func NewInventoryRepo(q sqlx.Ext) *InventoryRepo { return &InventoryRepo{q: q} }

const invColumns = `id, part_no, color_id, name, qty, state, COALESCE(updated_at,'') AS updated_at`

// Upsert inserts the part/color row or folds the delta into an existing one.
// Default contract: quantity is additive and the stored state wins; adding
// more of a tracked part never silently relocks or unlocks it. overrideState
// forces initial onto the row, overwriteQty replaces the quantity instead of
// adding (the configurable alternative policy).
func (r *InventoryRepo) Upsert(partNo string, colorID int, name string, deltaQty int, initial domain.PartState, overrideState, overwriteQty bool) (domain.InventoryItem, error) {
	_, err := r.q.Exec(`
		INSERT INTO inventory(id, part_no, color_id, name, qty, state, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(part_no, color_id) DO UPDATE SET
		  qty        = CASE WHEN ? THEN excluded.qty ELSE inventory.qty + excluded.qty END,
		  state      = CASE WHEN ? THEN excluded.state ELSE inventory.state END,
		  name       = CASE WHEN inventory.name = '' THEN excluded.name ELSE inventory.name END,
		  updated_at = CURRENT_TIMESTAMP
	`, uuid.NewString(), partNo, colorID, name, deltaQty, string(initial), overwriteQty, overrideState)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return r.Get(partNo, colorID)
}

// Get returns the row for a part/color key; sql.ErrNoRows when absent.
func (r *InventoryRepo) Get(partNo string, colorID int) (domain.InventoryItem, error) {
	var it domain.InventoryItem
	err := sqlx.Get(r.q, &it, `SELECT `+invColumns+` FROM inventory WHERE part_no = ? AND color_id = ?`, partNo, colorID)
	return it, err
}

// List returns inventory rows, optionally filtered by state.
func (r *InventoryRepo) List(state *domain.PartState) ([]domain.InventoryItem, error) {
	var out []domain.InventoryItem
	if state != nil {
		err := sqlx.Select(r.q, &out, `SELECT `+invColumns+` FROM inventory WHERE state = ? ORDER BY part_no, color_id`, string(*state))
		return out, err
	}
	err := sqlx.Select(r.q, &out, `SELECT `+invColumns+` FROM inventory ORDER BY part_no, color_id`)
	return out, err
}

// SetState overwrites the state of an existing row. Transition legality is
// checked by the service before this runs.
func (r *InventoryRepo) SetState(partNo string, colorID int, state domain.PartState) error {
	_, err := r.q.Exec(`
		UPDATE inventory SET state = ?, updated_at = CURRENT_TIMESTAMP
		WHERE part_no = ? AND color_id = ?
	`, string(state), partNo, colorID)
	return err
}

type StateCount struct {
	State domain.PartState `db:"state"`
	Keys  int              `db:"keys"`
	Qty   int              `db:"qty"`
}

// SummaryByState feeds the dashboard: key and piece counts per state.
func (r *InventoryRepo) SummaryByState() ([]StateCount, error) {
	var out []StateCount
	err := sqlx.Select(r.q, &out, `
		SELECT state, COUNT(*) AS keys, COALESCE(SUM(qty),0) AS qty
		FROM inventory GROUP BY state ORDER BY state
	`)
	return out, err
}
