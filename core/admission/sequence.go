package admission

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/tenant"
)

var (
	// ErrSequenceConflict marks a transient locking/serialization failure
	// during the atomic counter increment; repositories map their driver's
	// SQLSTATEs to it so the Generator can retry.
	ErrSequenceConflict = errors.New("admission sequence update conflict")

	NowFunc = time.Now // mockable
)

// maxNextAttempts bounds the transparent retry on ErrSequenceConflict.
const maxNextAttempts = 3

type (
	// SequenceRepository persists the per (school, academic year) counter.
	// Implementations must make NextSequenceValue a single atomic
	// increment-and-return (upsert semantics for the first issuance): a
	// read-then-write pair would let two concurrent admissions observe the
	// same value.
	SequenceRepository interface {
		NextSequenceValue(ctx context.Context, scope tenant.Scope, year int, exec ...core.DBExecutor) (int, error)
		// CurrentSequenceValue returns 0 when no counter exists yet; it never creates one.
		CurrentSequenceValue(ctx context.Context, scope tenant.Scope, year int, exec ...core.DBExecutor) (int, error)
		SetSequenceValue(ctx context.Context, scope tenant.Scope, year, value int, exec ...core.DBExecutor) error
	}

	// SchoolFormats yields a school's admission number format configuration.
	SchoolFormats interface {
		AdmissionFormat(ctx context.Context, scope tenant.Scope, exec ...core.DBExecutor) (Format, string, error)
	}

	// IssuedNumbers yields the admission numbers already on record for the
	// scoped school, keyed by academic year of issuance.
	IssuedNumbers interface {
		AdmissionNumbers(ctx context.Context, scope tenant.Scope, exec ...core.DBExecutor) ([]string, error)
	}

	Generator struct {
		repo     SequenceRepository
		schools  SchoolFormats
		students IssuedNumbers
		logger   core.Logger
	}
)

func NewGenerator(repo SequenceRepository, schools SchoolFormats, students IssuedNumbers, logger core.Logger) *Generator {
	return &Generator{
		repo:     repo,
		schools:  schools,
		students: students,
		logger:   logger,
	}
}

// CurrentAcademicYear is the year used when callers do not specify one.
func CurrentAcademicYear() int {
	return NowFunc().UTC().Year()
}

// Next atomically increments and returns the counter for the scoped school
// and year, creating it at 1 on first issuance. Transient conflicts are
// retried transparently unless the caller supplied its own transaction, in
// which case the failed transaction is the caller's to retry as a whole.
func (g *Generator) Next(ctx context.Context, scope tenant.Scope, year int, exec ...core.DBExecutor) (int, error) {
	if err := scope.RequireSchool(); err != nil {
		return 0, err
	}
	if year == 0 {
		year = CurrentAcademicYear()
	}

	attempts := maxNextAttempts
	if len(exec) > 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		seq, err := g.repo.NextSequenceValue(ctx, scope, year, exec...)
		if err == nil {
			issuedTotal.Inc()
			return seq, nil
		}
		if errors.Cause(err) != ErrSequenceConflict {
			return 0, err
		}
		lastErr = err
		retriesTotal.Inc()
		time.Sleep(time.Duration(attempt) * 10 * time.Millisecond)
	}
	return 0, errors.Wrapf(lastErr, "incrementing admission sequence (%d attempts)", attempts)
}

// Current returns the counter's value without touching it; 0 when no counter
// exists yet (a valid "first issuance pending" state, not an error).
func (g *Generator) Current(ctx context.Context, scope tenant.Scope, year int) (int, error) {
	if err := scope.RequireSchool(); err != nil {
		return 0, err
	}
	if year == 0 {
		year = CurrentAcademicYear()
	}
	return g.repo.CurrentSequenceValue(ctx, scope, year)
}

// Reset overwrites the counter. Administrative only: callers must guarantee
// no admission is issued for the scope concurrently, as Reset is not
// coordinated with Next.
func (g *Generator) Reset(ctx context.Context, scope tenant.Scope, year, value int) error {
	if err := scope.RequireSchool(); err != nil {
		return err
	}
	if year == 0 {
		year = CurrentAcademicYear()
	}
	if value < 0 {
		return core.NewValidationError(errors.New("sequence value cannot be negative"),
			core.FieldError{Field: "value", Error: "must be >= 0"})
	}
	return g.repo.SetSequenceValue(ctx, scope, year, value)
}

// Repair re-synchronizes counters that lag behind the admission numbers
// actually on record (drift from migrations, direct edits or out-of-band
// resets). It parses every issued number per the school's format, computes
// the maximum per academic year and raises - never lowers - the stored
// counters. Returns the raised values keyed by year.
func (g *Generator) Repair(ctx context.Context, scope tenant.Scope) (map[int]int, error) {
	if err := scope.RequireSchool(); err != nil {
		return nil, err
	}

	format, sep, err := g.schools.AdmissionFormat(ctx, scope)
	if err != nil {
		return nil, errors.Wrap(err, "loading school format")
	}
	numbers, err := g.students.AdmissionNumbers(ctx, scope)
	if err != nil {
		return nil, errors.Wrap(err, "loading issued admission numbers")
	}

	maxByYear := make(map[int]int)
	for _, admNo := range numbers {
		_, year, seq, err := Parse(format, sep, admNo)
		if err != nil {
			// legacy or hand-edited records may not match the configured
			// format; they cannot drive the counter
			g.logger.Warn("repair: skipping unparseable admission number",
				map[string]interface{}{"schoolId": scope.SchoolID, "number": admNo})
			continue
		}
		if seq > maxByYear[year] {
			maxByYear[year] = seq
		}
	}

	raised := make(map[int]int)
	for year, max := range maxByYear {
		cur, err := g.repo.CurrentSequenceValue(ctx, scope, year)
		if err != nil {
			return nil, errors.Wrapf(err, "reading counter for year %d", year)
		}
		if max <= cur {
			continue
		}
		if err = g.repo.SetSequenceValue(ctx, scope, year, max); err != nil {
			return nil, errors.Wrapf(err, "raising counter for year %d", year)
		}
		repairsTotal.Inc()
		g.logger.Info("repair: raised admission sequence counter",
			map[string]interface{}{"schoolId": scope.SchoolID, "year": year, "from": cur, "to": max})
		raised[year] = max
	}
	return raised, nil
}
