package services_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"brickstock/internal/catalog"
	"brickstock/internal/config"
	"brickstock/internal/domain"
	"brickstock/internal/repos"
	"brickstock/internal/services"
)

// stubCatalog serves canned responses and counts upstream calls.
type stubCatalog struct {
	meta  map[string]catalog.SetMetadata
	parts map[string][]catalog.Part
	calls int
	up    bool
}

func (s *stubCatalog) FetchSetMetadata(_ context.Context, setNo string) (catalog.SetMetadata, error) {
	s.calls++
	md, ok := s.meta[setNo]
	if !ok {
		return catalog.SetMetadata{}, &catalog.NotFoundError{SetNo: setNo}
	}
	return md, nil
}

func (s *stubCatalog) FetchSetInventory(_ context.Context, setNo string) ([]catalog.Part, error) {
	s.calls++
	parts, ok := s.parts[setNo]
	if !ok {
		return nil, &catalog.NotFoundError{SetNo: setNo}
	}
	return parts, nil
}

func (s *stubCatalog) SearchSets(_ context.Context, query string, limit int) ([]catalog.SearchResult, error) {
	s.calls++
	return nil, nil
}

func (s *stubCatalog) HealthCheck(context.Context) bool { return s.up }
func (s *stubCatalog) ClearCache()                      {}

func falconStub() *stubCatalog {
	return &stubCatalog{
		up: true,
		meta: map[string]catalog.SetMetadata{
			"75192-1": {SetNo: "75192-1", Name: "X", Year: 2017},
		},
		parts: map[string][]catalog.Part{
			"75192-1": {
				{PartNo: "3001", ColorID: 1, Qty: 4, Name: "Brick 2 x 4"},
				{PartNo: "3002", ColorID: 2, Qty: 2, Name: "Brick 2 x 3"},
			},
		},
	}
}

// slowCatalog stalls metadata fetches so concurrent callers overlap in
// flight. It honors ctx cancellation during the stall and serializes access
// to the wrapped stub's counters.
type slowCatalog struct {
	inner *stubCatalog
	delay time.Duration
	mu    sync.Mutex
}

func (s *slowCatalog) FetchSetMetadata(ctx context.Context, setNo string) (catalog.SetMetadata, error) {
	select {
	case <-ctx.Done():
		return catalog.SetMetadata{}, &catalog.TimeoutError{Detail: "request abandoned"}
	case <-time.After(s.delay):
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.FetchSetMetadata(ctx, setNo)
}

func (s *slowCatalog) FetchSetInventory(ctx context.Context, setNo string) ([]catalog.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.FetchSetInventory(ctx, setNo)
}

func (s *slowCatalog) SearchSets(ctx context.Context, query string, limit int) ([]catalog.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.SearchSets(ctx, query, limit)
}

func (s *slowCatalog) HealthCheck(ctx context.Context) bool { return s.inner.HealthCheck(ctx) }
func (s *slowCatalog) ClearCache()                          { s.inner.ClearCache() }

func (s *slowCatalog) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.calls
}

func newService(t *testing.T, cat services.Catalog) (*services.InventoryService, *sqlx.DB) {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return services.NewInventoryService(db, cat, config.QtyMerge), db
}

func TestAddSet_PersistsSetAndParts(t *testing.T) {
	svc, db := newService(t, falconStub())

	set, err := svc.AddSet(context.Background(), "75192-1", services.AddSetOptions{Assembled: false})
	if err != nil {
		t.Fatal(err)
	}
	if set.Name != "X" || set.Year != 2017 || set.NumParts != 6 {
		t.Fatalf("bad set: %+v", set)
	}

	inv := repos.NewInventoryRepo(db)
	a, err := inv.Get("3001", 1)
	if err != nil {
		t.Fatal(err)
	}
	if a.Qty != 4 || a.State != domain.StateOwnedFree {
		t.Fatalf("want (3001,1) qty=4 OWNED_FREE, got %+v", a)
	}
	b, err := inv.Get("3002", 2)
	if err != nil {
		t.Fatal(err)
	}
	if b.Qty != 2 || b.State != domain.StateOwnedFree {
		t.Fatalf("want (3002,2) qty=2 OWNED_FREE, got %+v", b)
	}
}

func TestAddSet_AssembledStartsLocked(t *testing.T) {
	svc, db := newService(t, falconStub())

	if _, err := svc.AddSet(context.Background(), "75192-1", services.AddSetOptions{Assembled: true}); err != nil {
		t.Fatal(err)
	}
	it, err := repos.NewInventoryRepo(db).Get("3001", 1)
	if err != nil {
		t.Fatal(err)
	}
	if it.State != domain.StateOwnedLocked {
		t.Fatalf("assembled set parts must start locked, got %s", it.State)
	}
}

func TestAddSet_TwiceMergesQuantityKeepsState(t *testing.T) {
	svc, db := newService(t, falconStub())

	if _, err := svc.AddSet(context.Background(), "75192-1", services.AddSetOptions{Assembled: false}); err != nil {
		t.Fatal(err)
	}
	// Second add arrives assembled; without an explicit override the stored
	// state must survive while quantities double.
	if _, err := svc.AddSet(context.Background(), "75192-1", services.AddSetOptions{Assembled: true}); err != nil {
		t.Fatal(err)
	}

	it, err := repos.NewInventoryRepo(db).Get("3001", 1)
	if err != nil {
		t.Fatal(err)
	}
	if it.Qty != 8 {
		t.Fatalf("want doubled qty 8, got %d", it.Qty)
	}
	if it.State != domain.StateOwnedFree {
		t.Fatalf("state must be preserved across re-adds, got %s", it.State)
	}
}

func TestAddSet_OverrideStateRelocks(t *testing.T) {
	svc, db := newService(t, falconStub())

	if _, err := svc.AddSet(context.Background(), "75192-1", services.AddSetOptions{Assembled: false}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddSet(context.Background(), "75192-1", services.AddSetOptions{Assembled: true, OverrideState: true}); err != nil {
		t.Fatal(err)
	}
	it, err := repos.NewInventoryRepo(db).Get("3001", 1)
	if err != nil {
		t.Fatal(err)
	}
	if it.State != domain.StateOwnedLocked {
		t.Fatalf("explicit override must re-apply the initial state, got %s", it.State)
	}
}

func TestAddSet_SkipsSparesByDefault(t *testing.T) {
	stub := falconStub()
	stub.parts["75192-1"] = append(stub.parts["75192-1"],
		catalog.Part{PartNo: "3001", ColorID: 9, Qty: 1, IsSpare: true})
	svc, db := newService(t, stub)

	set, err := svc.AddSet(context.Background(), "75192-1", services.AddSetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if set.NumParts != 6 {
		t.Fatalf("spares must not count, got %d", set.NumParts)
	}
	if _, err := repos.NewInventoryRepo(db).Get("3001", 9); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("spare must not be tracked, got %v", err)
	}
}

func TestAddSet_UnknownSetWritesNothing(t *testing.T) {
	svc, db := newService(t, falconStub())

	_, err := svc.AddSet(context.Background(), "99999-1", services.AddSetOptions{})
	var nf *domain.SetNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want SetNotFoundError, got %v", err)
	}

	sets, err := repos.NewSetRepo(db).List()
	if err != nil {
		t.Fatal(err)
	}
	items, err := repos.NewInventoryRepo(db).List(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 0 || len(items) != 0 {
		t.Fatalf("nothing may be persisted, got %d sets %d items", len(sets), len(items))
	}
}

func TestAddSet_MalformedSetNoNeverCallsCatalog(t *testing.T) {
	stub := falconStub()
	svc, _ := newService(t, stub)

	for _, bad := range []string{"", "75 192", "abc", "75192-1; DROP TABLE sets", "75192--1"} {
		_, err := svc.AddSet(context.Background(), bad, services.AddSetOptions{})
		var iie *domain.InvalidInputError
		if !errors.As(err, &iie) {
			t.Fatalf("set_no %q: want InvalidInputError, got %v", bad, err)
		}
	}
	if stub.calls != 0 {
		t.Fatalf("malformed input must be rejected before any catalog call, got %d", stub.calls)
	}
}

func TestAddSet_ConcurrentDuplicatesCollapse(t *testing.T) {
	slow := &slowCatalog{inner: falconStub(), delay: 200 * time.Millisecond}
	svc, db := newService(t, slow)

	const callers = 4
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.AddSet(context.Background(), "75192-1", services.AddSetOptions{})
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	it, err := repos.NewInventoryRepo(db).Get("3001", 1)
	if err != nil {
		t.Fatal(err)
	}
	if it.Qty != 4 {
		t.Fatalf("concurrent duplicate adds must collapse to one execution, got qty %d", it.Qty)
	}
	if got := slow.callCount(); got != 2 {
		t.Fatalf("want one metadata and one inventory fetch, got %d", got)
	}
}

func TestAddSet_CollapsedCallersSurviveFirstCallerCancel(t *testing.T) {
	slow := &slowCatalog{inner: falconStub(), delay: 200 * time.Millisecond}
	svc, db := newService(t, slow)

	firstCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var firstErr, secondErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, firstErr = svc.AddSet(firstCtx, "75192-1", services.AddSetOptions{})
	}()
	go func() {
		defer wg.Done()
		// Join the in-flight execution, then cancel its initiator mid-fetch.
		time.Sleep(50 * time.Millisecond)
		cancel()
		_, secondErr = svc.AddSet(context.Background(), "75192-1", services.AddSetOptions{})
	}()
	wg.Wait()

	if firstErr != nil || secondErr != nil {
		t.Fatalf("shared execution must outlive the first caller's cancel: first=%v second=%v", firstErr, secondErr)
	}
	it, err := repos.NewInventoryRepo(db).Get("3001", 1)
	if err != nil {
		t.Fatal(err)
	}
	if it.Qty != 4 {
		t.Fatalf("want a single committed add, got qty %d", it.Qty)
	}
}

func TestUpdateState_LegalityAndNoOp(t *testing.T) {
	svc, db := newService(t, falconStub())
	if _, err := svc.AddSet(context.Background(), "75192-1", services.AddSetOptions{}); err != nil {
		t.Fatal(err)
	}

	// OWNED_FREE -> OWNED_LOCKED is legal.
	it, err := svc.UpdateState("3001", 1, domain.StateOwnedLocked)
	if err != nil {
		t.Fatal(err)
	}
	if it.State != domain.StateOwnedLocked {
		t.Fatalf("want OWNED_LOCKED, got %s", it.State)
	}

	// OWNED_LOCKED -> MISSING is not; the row must stay untouched.
	_, err = svc.UpdateState("3001", 1, domain.StateMissing)
	var ist *domain.InvalidStateTransitionError
	if !errors.As(err, &ist) {
		t.Fatalf("want InvalidStateTransitionError, got %v", err)
	}
	after, err := repos.NewInventoryRepo(db).Get("3001", 1)
	if err != nil {
		t.Fatal(err)
	}
	if after.State != domain.StateOwnedLocked || after.Qty != 4 {
		t.Fatalf("failed transition must not mutate the row: %+v", after)
	}

	// Self-transition is a no-op that succeeds.
	it, err = svc.UpdateState("3001", 1, domain.StateOwnedLocked)
	if err != nil {
		t.Fatal(err)
	}
	if it.State != domain.StateOwnedLocked || it.Qty != 4 {
		t.Fatalf("no-op must not alter the row: %+v", it)
	}
}

func TestUpdateState_MissingPart(t *testing.T) {
	svc, _ := newService(t, falconStub())
	_, err := svc.UpdateState("4070", 11, domain.StateOwnedFree)
	var pnf *domain.PartNotFoundError
	if !errors.As(err, &pnf) {
		t.Fatalf("want PartNotFoundError, got %v", err)
	}
}

func TestListInventory_BadStateFilter(t *testing.T) {
	svc, _ := newService(t, falconStub())
	_, err := svc.ListInventory("GLUED")
	var iie *domain.InvalidInputError
	if !errors.As(err, &iie) {
		t.Fatalf("want InvalidInputError, got %v", err)
	}
}

func TestGetSet(t *testing.T) {
	svc, _ := newService(t, falconStub())
	if _, err := svc.AddSet(context.Background(), "75192-1", services.AddSetOptions{}); err != nil {
		t.Fatal(err)
	}
	set, err := svc.GetSet("75192-1")
	if err != nil {
		t.Fatal(err)
	}
	if set.Name != "X" {
		t.Fatalf("bad set: %+v", set)
	}
	_, err = svc.GetSet("10179-1")
	var nf *domain.SetNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want SetNotFoundError, got %v", err)
	}
}

func TestOverwriteQtyPolicy(t *testing.T) {
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	svc := services.NewInventoryService(db, falconStub(), config.QtyOverwrite)

	if _, err := svc.AddSet(context.Background(), "75192-1", services.AddSetOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddSet(context.Background(), "75192-1", services.AddSetOptions{}); err != nil {
		t.Fatal(err)
	}
	it, err := repos.NewInventoryRepo(db).Get("3001", 1)
	if err != nil {
		t.Fatal(err)
	}
	if it.Qty != 4 {
		t.Fatalf("overwrite policy must not double-count, got %d", it.Qty)
	}
}
