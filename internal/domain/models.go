package domain

// Set is a catalog-defined LEGO product stored once per set number.
// Immutable after creation in this scope.
type Set struct {
	ID        string  `db:"id" json:"-"`
	SetNo     string  `db:"set_no" json:"set_no"`
	Name      string  `db:"name" json:"name"`
	Year      int     `db:"year" json:"year,omitempty"`
	Theme     string  `db:"theme" json:"theme,omitempty"`
	NumParts  int     `db:"num_parts" json:"num_parts,omitempty"`
	ImageURL  string  `db:"image_url" json:"image_url,omitempty"`
	WeightG   float64 `db:"weight_g" json:"weight_g,omitempty"`
	Assembled bool    `db:"assembled" json:"assembled"`
	CreatedAt string  `db:"created_at" json:"-"`
}

// InventoryItem is the mutable ownership record for one (part_no, color_id)
// key. Quantities are tracked globally, not per set: disassembling one of two
// sets sharing a part cannot be told apart in this model (inherited
// limitation, documented rather than fixed).
type InventoryItem struct {
	ID        string    `db:"id" json:"-"`
	PartNo    string    `db:"part_no" json:"part_no"`
	ColorID   int       `db:"color_id" json:"color_id"`
	Name      string    `db:"name" json:"name,omitempty"`
	Qty       int       `db:"qty" json:"qty"`
	State     PartState `db:"state" json:"state"`
	UpdatedAt string    `db:"updated_at" json:"-"`
}
