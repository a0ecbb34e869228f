package admission

import (
	"context"
	"sync"
	"testing"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/tenant"
)

type (
	seqKey struct {
		schoolID string
		year     int
	}

	// fakeSeqRepo is an in-memory SequenceRepository; conflictsLeft injects
	// transient failures to exercise the retry path.
	fakeSeqRepo struct {
		mu            sync.Mutex
		counters      map[seqKey]int
		conflictsLeft int
	}

	fakeSchoolFormats struct {
		format Format
		sep    string
	}

	fakeIssuedNumbers struct {
		numbers []string
	}

	nopLogger struct{}
)

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

var _ core.Logger = (*nopLogger)(nil)

func newFakeSeqRepo() *fakeSeqRepo {
	return &fakeSeqRepo{counters: make(map[seqKey]int)}
}

func (r *fakeSeqRepo) NextSequenceValue(_ context.Context, scope tenant.Scope, year int, _ ...core.DBExecutor) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return 0, ErrSequenceConflict
	}
	key := seqKey{scope.SchoolID, year}
	r.counters[key]++
	return r.counters[key], nil
}

func (r *fakeSeqRepo) CurrentSequenceValue(_ context.Context, scope tenant.Scope, year int, _ ...core.DBExecutor) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[seqKey{scope.SchoolID, year}], nil
}

func (r *fakeSeqRepo) SetSequenceValue(_ context.Context, scope tenant.Scope, year, value int, _ ...core.DBExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[seqKey{scope.SchoolID, year}] = value
	return nil
}

func (f fakeSchoolFormats) AdmissionFormat(context.Context, tenant.Scope, ...core.DBExecutor) (Format, string, error) {
	return f.format, f.sep, nil
}

func (f fakeIssuedNumbers) AdmissionNumbers(context.Context, tenant.Scope, ...core.DBExecutor) ([]string, error) {
	return f.numbers, nil
}

func newTestGenerator(repo *fakeSeqRepo, numbers ...string) *Generator {
	return NewGenerator(
		repo,
		fakeSchoolFormats{format: FormatNoBranch, sep: "-"},
		fakeIssuedNumbers{numbers: numbers},
		nopLogger{},
	)
}

var testScope = tenant.Scope{SchoolID: "school1", Roles: []string{"admin:"}}

func TestGeneratorNext(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSeqRepo()
	gen := newTestGenerator(repo)

	for want := 1; want <= 3; want++ {
		got, err := gen.Next(ctx, testScope, 2025)
		if err != nil {
			t.Fatalf("Next() failed: %v", err)
		}
		if got != want {
			t.Errorf("Next() = %d; want %d", got, want)
		}
	}

	// an unbound scope can never issue numbers
	if _, err := gen.Next(ctx, tenant.Scope{Operator: true}, 2025); err != tenant.ErrSchoolRequired {
		t.Errorf("Next() with unbound scope: error = %v; want ErrSchoolRequired", err)
	}
}

// N concurrent Next calls yield N distinct values covering exactly {k+1..k+N}.
func TestGeneratorNextConcurrent(t *testing.T) {
	const n = 64
	ctx := context.Background()
	repo := newFakeSeqRepo()
	gen := newTestGenerator(repo)

	var wg sync.WaitGroup
	results := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := gen.Next(ctx, testScope, 2025)
			if err != nil {
				t.Errorf("Next() failed: %v", err)
				return
			}
			results <- seq
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool, n)
	for seq := range results {
		if seen[seq] {
			t.Errorf("duplicate sequence number %d", seq)
		}
		seen[seq] = true
		if seq < 1 || seq > n {
			t.Errorf("sequence number %d outside expected range [1, %d]", seq, n)
		}
	}
	if len(seen) != n {
		t.Errorf("got %d distinct numbers; want %d", len(seen), n)
	}
}

func TestGeneratorNextRetriesConflicts(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSeqRepo()
	repo.conflictsLeft = maxNextAttempts - 1
	gen := newTestGenerator(repo)

	seq, err := gen.Next(ctx, testScope, 2025)
	if err != nil {
		t.Fatalf("Next() failed despite retries: %v", err)
	}
	if seq != 1 {
		t.Errorf("Next() = %d; want 1", seq)
	}

	// exhausted retries surface the conflict
	repo.conflictsLeft = maxNextAttempts
	if _, err = gen.Next(ctx, testScope, 2025); err == nil {
		t.Error("Next() succeeded; want error after exhausted retries")
	}

	// within a caller-owned transaction there is exactly one attempt
	repo.conflictsLeft = 1
	if _, err = gen.Next(ctx, testScope, 2025, nil); err == nil {
		t.Error("Next() in caller tx succeeded; want immediate conflict")
	}
}

func TestGeneratorCurrent(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSeqRepo()
	gen := newTestGenerator(repo)

	// absent counter is a valid state, not an error
	cur, err := gen.Current(ctx, testScope, 2025)
	if err != nil {
		t.Fatalf("Current() failed: %v", err)
	}
	if cur != 0 {
		t.Errorf("Current() = %d; want 0", cur)
	}

	if _, err = gen.Next(ctx, testScope, 2025); err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if cur, _ = gen.Current(ctx, testScope, 2025); cur != 1 {
		t.Errorf("Current() = %d; want 1", cur)
	}
}

func TestGeneratorReset(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSeqRepo()
	gen := newTestGenerator(repo)

	if err := gen.Reset(ctx, testScope, 2025, 100); err != nil {
		t.Fatalf("Reset() failed: %v", err)
	}
	if cur, _ := gen.Current(ctx, testScope, 2025); cur != 100 {
		t.Errorf("Current() = %d; want 100", cur)
	}

	if err := gen.Reset(ctx, testScope, 2025, -1); err == nil {
		t.Error("Reset(-1) succeeded; want validation error")
	}
}

func TestGeneratorRepair(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSeqRepo()
	gen := newTestGenerator(repo,
		"ADM-2025-001",
		"ADM-2025-002",
		"ADM-2025-005",
		"ADM-2024-009",
		"LEGACY/0001", // unparseable records never drive the counter
	)
	_ = repo.SetSequenceValue(ctx, testScope, 2025, 2)
	_ = repo.SetSequenceValue(ctx, testScope, 2024, 50)

	raised, err := gen.Repair(ctx, testScope)
	if err != nil {
		t.Fatalf("Repair() failed: %v", err)
	}

	// lagging counter raised to the observed maximum
	if cur, _ := gen.Current(ctx, testScope, 2025); cur != 5 {
		t.Errorf("2025 counter = %d; want 5", cur)
	}
	if raised[2025] != 5 {
		t.Errorf("raised[2025] = %d; want 5", raised[2025])
	}

	// repair never lowers a counter
	if cur, _ := gen.Current(ctx, testScope, 2024); cur != 50 {
		t.Errorf("2024 counter = %d; want 50", cur)
	}
	if _, ok := raised[2024]; ok {
		t.Error("repair lowered or touched an ahead counter")
	}
}
