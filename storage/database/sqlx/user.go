package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/tenant"
	"github.com/trezcool/academia/core/user"
)

type (
	userRow struct {
		ID           string         `db:"id"`
		SchoolID     null.String    `db:"school_id"`
		BranchID     null.String    `db:"branch_id"`
		Name         string         `db:"name"`
		Username     string         `db:"username"`
		Email        string         `db:"email"`
		IsActive     bool           `db:"is_active"`
		Roles        pq.StringArray `db:"roles"`
		PasswordHash []byte         `db:"password_hash"`
		CreatedAt    time.Time      `db:"created_at"`
		UpdatedAt    time.Time      `db:"updated_at"`
		LastLogin    null.Time      `db:"last_login"`
	}

	userRepository struct {
		exec core.DBExecutor
	}
)

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

const userCols = "id, school_id, branch_id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login"

func (r userRow) toUser() user.User {
	isActive := r.IsActive
	return user.User{
		ID:           r.ID,
		SchoolID:     r.SchoolID,
		BranchID:     r.BranchID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		IsActive:     &isActive,
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

func (repo userRepository) query(ctx context.Context, exe core.DBExecutor, query string, args []interface{}) ([]user.User, error) {
	rows, err := exe.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var userRows []userRow
	if err = sqlx.StructScan(rows, &userRows); err != nil {
		return nil, err
	}
	users := make([]user.User, 0, len(userRows))
	for _, r := range userRows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, scope tenant.Scope, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	// uniqueness is school-wide; branch confinement does not apply here
	q := new(scopedQuery).confine(scope, "school_id")
	q.where("(username = ? OR email = ?)", username, email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q.where("NOT (id = ANY(?))", pq.Array(ids))
	}
	query, args := q.render("SELECT username, email FROM app_user", "LIMIT 1")

	rows, err := getExec(repo.exec, exec).QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var uname, mail string
		if err = rows.Scan(&uname, &mail); err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if username != "" && uname == username {
			return user.ErrUsernameExists
		}
		return user.ErrEmailExists
	}
	return errors.Wrap(rows.Err(), "checking user uniqueness")
}

// CreateUser stamps the scope's school (and branch, for branch-bound
// callers); an unbound operator scope creates platform accounts with no
// school.
func (repo userRepository) CreateUser(ctx context.Context, scope tenant.Scope, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	if scope.Bound() {
		usr.SchoolID = null.StringFrom(scope.SchoolID)
		if scope.BranchID.Valid {
			usr.BranchID = scope.BranchID
		}
	}

	const q = `
		INSERT INTO app_user (id, school_id, branch_id, name, username, email, is_active, roles, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	isActive := usr.IsActive == nil || *usr.IsActive
	_, err := getExec(repo.exec, exec).ExecContext(ctx, q,
		usr.ID, usr.SchoolID, usr.BranchID, usr.Name, usr.Username, usr.Email,
		isActive, pq.Array(usr.Roles), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, scope tenant.Scope, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	q := new(scopedQuery).confine(scope, "school_id").confineBranch(scope, "branch_id")

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q.where("id = ?", filter.ID)
	case filter.Username != "":
		q.where("username = ?", filter.Username)
	case filter.Email != "":
		q.where("email = ?", filter.Email)
	case filter.UsernameOrEmail != "":
		q.where("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}
	query, args := q.render("SELECT "+userCols+" FROM app_user", "LIMIT 1")

	users, err := repo.query(ctx, getExec(repo.exec, exec), query, args)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user")
	}
	if len(users) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return users[0], nil
}

func (repo userRepository) QueryUsers(ctx context.Context, scope tenant.Scope, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	q := new(scopedQuery).confine(scope, "school_id").confineBranch(scope, "branch_id")

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q.where("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			conds := make([]string, 0, len(filter.Roles))
			args := make([]interface{}, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				conds = append(conds, "EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE ?)")
				args = append(args, role+"%")
			}
			q.where("("+strings.Join(conds, " OR ")+")", args...)
		}
		if filter.IsActive != nil {
			q.where("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			q.where("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			q.where("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	suffix := orderBy(ordering)
	if suffix == "" {
		suffix = "ORDER BY created_at DESC"
	}
	query, args := q.render("SELECT "+userCols+" FROM app_user", suffix)

	users, err := repo.query(ctx, getExec(repo.exec, exec), query, args)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, scope tenant.Scope, usr user.User, isActive *bool, exec ...core.DBExecutor) (user.User, error) {
	if usr.UpdatedAt.IsZero() {
		usr.UpdatedAt = time.Now().UTC()
	}

	// only set provided fields
	sets := []string{"updated_at = ?"}
	args := []interface{}{usr.UpdatedAt.UTC()}
	add := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if usr.Name != "" {
		add("name", usr.Name)
	}
	if usr.Username != "" {
		add("username", usr.Username)
	}
	if usr.Email != "" {
		add("email", usr.Email)
	}
	if usr.BranchID.Valid {
		add("branch_id", usr.BranchID)
	}
	if usr.Roles != nil {
		add("roles", pq.Array(usr.Roles))
	}
	if usr.PasswordHash != nil {
		add("password_hash", usr.PasswordHash)
	}
	if isActive != nil {
		add("is_active", *isActive)
	}
	if !usr.LastLogin.IsZero() {
		add("last_login", usr.LastLogin.UTC())
	}

	q := new(scopedQuery).where("id = ?", usr.ID).confine(scope, "school_id").confineBranch(scope, "branch_id")
	where := strings.Join(q.conds, " AND ")
	args = append(args, q.args...)

	query := sqlx.Rebind(sqlx.DOLLAR,
		"UPDATE app_user SET "+strings.Join(sets, ", ")+" WHERE "+where+" RETURNING "+userCols)

	users, err := repo.query(ctx, getExec(repo.exec, exec), query, args)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if len(users) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return users[0], nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, scope tenant.Scope, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}

	q := new(scopedQuery).where("id = ANY(?)", pq.Array(ids)).confine(scope, "school_id").confineBranch(scope, "branch_id")
	query, args := q.render("DELETE FROM app_user", "")

	if _, err := getExec(repo.exec, exec).ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
