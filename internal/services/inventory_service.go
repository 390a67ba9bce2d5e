package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/singleflight"

	"brickstock/internal/catalog"
	"brickstock/internal/config"
	"brickstock/internal/domain"
	"brickstock/internal/repos"
	"brickstock/internal/validate"
)

// Catalog is what the orchestration needs from a parts catalog provider.
// Satisfied by *catalog.Bricklink; tests substitute a stub.
type Catalog interface {
	FetchSetMetadata(ctx context.Context, setNo string) (catalog.SetMetadata, error)
	FetchSetInventory(ctx context.Context, setNo string) ([]catalog.Part, error)
	SearchSets(ctx context.Context, query string, limit int) ([]catalog.SearchResult, error)
	HealthCheck(ctx context.Context) bool
	ClearCache()
}

// InventoryService composes the catalog and the persistence layer to realize
// the add-a-set use case plus inventory reads and state changes.
type InventoryService struct {
	DB        *sqlx.DB
	Catalog   Catalog
	QtyPolicy config.QtyPolicy

	// Collapses concurrent AddSet calls for the same set number so duplicate
	// requests cannot double-count quantities.
	adds singleflight.Group
}

func NewInventoryService(db *sqlx.DB, cat Catalog, policy config.QtyPolicy) *InventoryService {
	if policy == "" {
		policy = config.QtyMerge
	}
	return &InventoryService{DB: db, Catalog: cat, QtyPolicy: policy}
}

// AddSetOptions tunes one AddSet call.
type AddSetOptions struct {
	Assembled bool
	// OverrideState re-applies the initial-state policy to part/color keys
	// that already exist (used when re-adding a disassembled set's parts).
	// Default keeps the stored state.
	OverrideState bool
	// IncludeSpares also tracks spare parts; skipped by default.
	IncludeSpares bool
}

// AddSet fetches the set from the catalog and folds its parts into the
// inventory. The set row and all part upserts commit in one transaction, so
// a failure partway through leaves nothing behind.
func (s *InventoryService) AddSet(ctx context.Context, setNo string, opt AddSetOptions) (*domain.Set, error) {
	setNo, ok := validate.SetNo(setNo)
	if !ok {
		return nil, &domain.InvalidInputError{Field: "set_no", Reason: "want digits with optional variant suffix, e.g. 75192 or 75192-1"}
	}

	// The execution is shared by every collapsed caller, so it must not die
	// with whichever request happened to arrive first. The catalog client's
	// own timeout still bounds it.
	v, err, _ := s.adds.Do(setNo, func() (any, error) {
		return s.addSet(context.WithoutCancel(ctx), setNo, opt)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Set), nil
}

func (s *InventoryService) addSet(ctx context.Context, setNo string, opt AddSetOptions) (*domain.Set, error) {
	md, err := s.Catalog.FetchSetMetadata(ctx, setNo)
	if err != nil {
		return nil, renameNotFound(err, setNo)
	}
	if md.Name == "" {
		return nil, &domain.SetNotFoundError{SetNo: setNo}
	}
	parts, err := s.Catalog.FetchSetInventory(ctx, setNo)
	if err != nil {
		return nil, renameNotFound(err, setNo)
	}

	initial := domain.InitialState(opt.Assembled)
	overwriteQty := s.QtyPolicy == config.QtyOverwrite

	var out *domain.Set
	err = repos.WithTx(s.DB, func(tx *sqlx.Tx) error {
		sets := repos.NewSetRepo(tx)
		inv := repos.NewInventoryRepo(tx)

		existing, err := sets.Get(setNo)
		if err != nil {
			return err
		}
		if existing != nil {
			// Set rows are immutable; re-adding only touches inventory.
			out = existing
		} else {
			out = &domain.Set{
				SetNo:     setNo,
				Name:      md.Name,
				Year:      md.Year,
				Theme:     md.Theme,
				NumParts:  totalQty(parts, opt.IncludeSpares),
				ImageURL:  md.ImageURL,
				WeightG:   md.WeightG,
				Assembled: opt.Assembled,
			}
			if err := sets.Create(out); err != nil {
				return err
			}
		}

		for _, p := range parts {
			if p.IsSpare && !opt.IncludeSpares {
				continue
			}
			if _, err := inv.Upsert(p.PartNo, p.ColorID, p.Name, p.Qty, initial, opt.OverrideState, overwriteQty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func totalQty(parts []catalog.Part, includeSpares bool) int {
	n := 0
	for _, p := range parts {
		if p.IsSpare && !includeSpares {
			continue
		}
		n += p.Qty
	}
	return n
}

// renameNotFound converts the catalog's not-found into the domain's
// vocabulary; every other catalog error passes through unchanged.
func renameNotFound(err error, setNo string) error {
	var nf *catalog.NotFoundError
	if errors.As(err, &nf) {
		return &domain.SetNotFoundError{SetNo: setNo}
	}
	return err
}

// GetSet returns a stored set.
func (s *InventoryService) GetSet(setNo string) (*domain.Set, error) {
	setNo, ok := validate.SetNo(setNo)
	if !ok {
		return nil, &domain.InvalidInputError{Field: "set_no", Reason: "malformed set number"}
	}
	set, err := repos.NewSetRepo(s.DB).Get(setNo)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, &domain.SetNotFoundError{SetNo: setNo}
	}
	return set, nil
}

func (s *InventoryService) ListSets() ([]domain.Set, error) {
	return repos.NewSetRepo(s.DB).List()
}

// ListInventory returns inventory rows, optionally filtered by state name.
func (s *InventoryService) ListInventory(stateFilter string) ([]domain.InventoryItem, error) {
	inv := repos.NewInventoryRepo(s.DB)
	if stateFilter == "" {
		return inv.List(nil)
	}
	st := domain.PartState(stateFilter)
	if !st.Valid() {
		return nil, &domain.InvalidInputError{Field: "state", Reason: "want MISSING, OWNED_FREE or OWNED_LOCKED"}
	}
	return inv.List(&st)
}

// UpdateState applies a caller-requested state change to one part/color key,
// enforcing the transition table. Self-transitions succeed without touching
// the row.
func (s *InventoryService) UpdateState(partNo string, colorID int, newState domain.PartState) (domain.InventoryItem, error) {
	partNo, ok := validate.PartNo(partNo)
	if !ok {
		return domain.InventoryItem{}, &domain.InvalidInputError{Field: "part_no", Reason: "malformed part number"}
	}
	if colorID < 0 {
		return domain.InventoryItem{}, &domain.InvalidInputError{Field: "color_id", Reason: "must be non-negative"}
	}

	inv := repos.NewInventoryRepo(s.DB)
	item, err := inv.Get(partNo, colorID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.InventoryItem{}, &domain.PartNotFoundError{PartNo: partNo, ColorID: colorID}
	}
	if err != nil {
		return domain.InventoryItem{}, err
	}
	if err := domain.CheckTransition(item.State, newState); err != nil {
		return domain.InventoryItem{}, err
	}
	if item.State == newState {
		return item, nil
	}
	if err := inv.SetState(partNo, colorID, newState); err != nil {
		return domain.InventoryItem{}, err
	}
	return inv.Get(partNo, colorID)
}

func (s *InventoryService) Summary() ([]repos.StateCount, error) {
	return repos.NewInventoryRepo(s.DB).SummaryByState()
}

// SearchSets proxies catalog search for callers browsing what to add.
func (s *InventoryService) SearchSets(ctx context.Context, query string, limit int) ([]catalog.SearchResult, error) {
	q, ok := validate.Q(query)
	if !ok {
		return nil, &domain.InvalidInputError{Field: "q", Reason: "1-50 letters, digits, spaces"}
	}
	return s.Catalog.SearchSets(ctx, q, limit)
}

// CatalogHealth reports whether the upstream catalog answers.
func (s *InventoryService) CatalogHealth(ctx context.Context) bool {
	return s.Catalog.HealthCheck(ctx)
}

func (s *InventoryService) ClearCatalogCache() {
	s.Catalog.ClearCache()
}
