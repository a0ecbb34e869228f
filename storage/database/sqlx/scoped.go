// Package sqlxrepos implements the repositories on PostgreSQL.
//
// Every repository routes its statements through scopedQuery so that a bound
// tenant scope always contributes a school_id predicate — and a branch_id
// predicate on branch-carrying entities when the scope names a branch; only
// an unbound operator scope queries across schools. Writes stamp the scope's
// identifiers server-side rather than trusting the caller's struct.
package sqlxrepos

import (
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/tenant"
)

// scopedQuery accumulates WHERE conditions with ? placeholders and rebinds
// them to PostgreSQL's $N form on render.
type scopedQuery struct {
	conds []string
	args  []interface{}
}

func (q *scopedQuery) where(cond string, args ...interface{}) *scopedQuery {
	q.conds = append(q.conds, cond)
	q.args = append(q.args, args...)
	return q
}

// confine adds the tenant predicate for a bound scope; an unbound operator
// scope passes through unfiltered.
func (q *scopedQuery) confine(scope tenant.Scope, col string) *scopedQuery {
	if scope.Bound() {
		q.where(col+" = ?", scope.SchoolID)
	}
	return q
}

// confineBranch narrows a branch-carrying entity to the scope's branch.
// School-wide callers carry no branch in their scope and pass through.
func (q *scopedQuery) confineBranch(scope tenant.Scope, col string) *scopedQuery {
	if scope.BranchBound() {
		q.where(col+" = ?", scope.BranchID.String)
	}
	return q
}

// render assembles base + WHERE clause + suffix into a $N-bound query.
func (q *scopedQuery) render(base, suffix string) (string, []interface{}) {
	query := base
	if len(q.conds) > 0 {
		query += " WHERE " + strings.Join(q.conds, " AND ")
	}
	if suffix != "" {
		query += " " + suffix
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), q.args
}

func orderBy(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		return ""
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return "ORDER BY " + strings.Join(orderList, ", ")
}

func getExec(defaultExec core.DBExecutor, svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return defaultExec
}

// trapConflictErr maps transient psql locking/serialization failures to
// admission.ErrSequenceConflict so services can retry.
func trapConflictErr(err error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return admission.ErrSequenceConflict
		}
	}
	return errors.Wrap(err, msg)
}
