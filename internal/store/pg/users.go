package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jschappet/heron/internal/roles"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// MembershipRow is the admin-facing view of a grant: membership plus
// the joined username and role name.
type MembershipRow struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Username  string     `json:"username"`
	HostID    int64      `json:"host_id"`
	Role      roles.Role `json:"role"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

const userColumns = `id, username, email, password_hash, is_active, created_at`

// CreateUser inserts an inactive account; activation happens through
// the verify-account token flow.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (User, error) {
	var u User
	row := s.db.QueryRowContext(ctx, `
		insert into users (username, email, password_hash, is_active)
		values ($1, $2, $3, false)
		returning `+userColumns, username, email, passwordHash)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return User{}, ErrConflict
		}
		return User{}, err
	}
	return u, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (User, error) {
	return s.findUser(ctx, `select `+userColumns+` from users where username=$1`, username)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (User, error) {
	return s.findUser(ctx, `select `+userColumns+` from users where email=$1`, email)
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (User, error) {
	return s.findUser(ctx, `select `+userColumns+` from users where id=$1`, id)
}

func (s *Store) findUser(ctx context.Context, query string, arg any) (User, error) {
	var u User
	row := s.db.QueryRowContext(ctx, query, arg)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) ActivateUser(ctx context.Context, id int64) error {
	return s.setUserActive(ctx, id, true)
}

func (s *Store) DeactivateUser(ctx context.Context, id int64) error {
	return s.setUserActive(ctx, id, false)
}

func (s *Store) setUserActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `update users set is_active=$2 where id=$1`, id, active)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2 where id=$1`, userID, passwordHash)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RequestEmailChange records the requested address; the switch happens
// only when the change-email token is redeemed.
func (s *Store) RequestEmailChange(ctx context.Context, userID int64, email string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set pending_email=$2 where id=$1`, userID, email)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConfirmEmailChange promotes the pending address. ErrNotFound when
// nothing is pending, ErrConflict when another account took the
// address in the meantime.
func (s *Store) ConfirmEmailChange(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx, `
		update users set email = pending_email, pending_email = ''
		where id = $1 and pending_email <> ''
	`, userID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return ErrConflict
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListMemberships(ctx context.Context, hostID int64) ([]MembershipRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		select m.id, m.user_id, u.username, m.host_id, r.name, m.active, m.created_at
		from memberships m
		join users u on u.id = m.user_id
		join roles r on r.id = m.role_id
		where m.host_id = $1
		order by u.username
	`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MembershipRow
	for rows.Next() {
		var (
			m    MembershipRow
			name string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Username, &m.HostID, &name, &m.Active, &m.CreatedAt); err != nil {
			return nil, err
		}
		role, err := roles.Parse(name)
		if err != nil {
			return nil, err
		}
		m.Role = role
		result = append(result, m)
	}
	return result, rows.Err()
}

// CreateMembership grants a role to a user on one host. Duplicate
// grants and references to missing rows surface as ErrConflict and
// ErrNotFound.
func (s *Store) CreateMembership(ctx context.Context, userID, hostID int64, role roles.Role) (int64, error) {
	var id int64
	row := s.db.QueryRowContext(ctx, `
		insert into memberships (user_id, host_id, role_id, active)
		values ($1, $2, (select id from roles where name=$3), true)
		returning id
	`, userID, hostID, role.Value())
	if err := row.Scan(&id); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return 0, ErrConflict
			case pgErrForeignKeyViolation:
				return 0, ErrNotFound
			}
		}
		return 0, err
	}
	return id, nil
}

func (s *Store) DeactivateMembership(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `update memberships set active=false where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
