package repos

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"brickstock/internal/domain"
)

// SetRepo reads and writes set records. It works against a *sqlx.DB or a
// *sqlx.Tx so AddSet can run its writes inside one transaction.
type SetRepo struct{ q sqlx.Ext }

func NewSetRepo(q sqlx.Ext) *SetRepo { return &SetRepo{q: q} }

const setColumns = `id, set_no, name, year, theme, num_parts, image_url, weight_g, assembled, COALESCE(created_at,'') AS created_at`

// Get returns the stored set, or nil when no row exists.
func (r *SetRepo) Get(setNo string) (*domain.Set, error) {
	var s domain.Set
	err := sqlx.Get(r.q, &s, `SELECT `+setColumns+` FROM sets WHERE set_no = ?`, setNo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new set row and fills in its generated id.
func (r *SetRepo) Create(s *domain.Set) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.q.Exec(`
		INSERT INTO sets(id, set_no, name, year, theme, num_parts, image_url, weight_g, assembled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.SetNo, s.Name, s.Year, s.Theme, s.NumParts, s.ImageURL, s.WeightG, s.Assembled)
	return err
}

func (r *SetRepo) List() ([]domain.Set, error) {
	var out []domain.Set
	err := sqlx.Select(r.q, &out, `SELECT `+setColumns+` FROM sets ORDER BY created_at DESC, set_no`)
	return out, err
}
