package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"teamflow/internal/apperr"
	"teamflow/internal/models"
)

const userColumns = `id, email, first_name, last_name, password_hash, organization_id, role, active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		u     models.User
		orgID sql.NullInt64
		role  int
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &orgID, &role, &u.Active, &u.CreatedAt); err != nil {
		return models.User{}, err
	}
	u.OrganizationID = int64Ptr(orgID)
	u.Role = models.Role(role)
	return u, nil
}

// CreateUser registers a new account. Emails are stored lower-cased.
func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	res, err := s.db.ExecContext(ctx, `INSERT INTO users(email, first_name, last_name, password_hash, organization_id, role, active, created_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		email, strings.TrimSpace(u.FirstName), strings.TrimSpace(u.LastName), u.PasswordHash,
		nullInt(u.OrganizationID), int(u.Role), u.Active, s.now())
	if isUniqueViolation(err) {
		return models.User{}, apperr.Conflict("email %s is already registered", email)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("user id: %w", err)
	}
	return s.GetUser(ctx, id)
}

// GetUser fetches a single user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.NotFound("user %d not found", id)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail looks a user up by case-insensitive email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.NotFound("user %s not found", email)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ListOrganizationUsers returns every user of an organization ordered by name.
func (s *Store) ListOrganizationUsers(ctx context.Context, orgID int64) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE organization_id = ? ORDER BY first_name, last_name, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUsers loads the given users keyed by id. Missing ids are skipped.
func (s *Store) GetUsers(ctx context.Context, ids []int64) (map[int64]models.User, error) {
	out := make(map[int64]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	clause, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id IN `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// UpdateUserProfile changes a user's display names.
func (s *Store) UpdateUserProfile(ctx context.Context, id int64, firstName, lastName string) (models.User, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET first_name = ?, last_name = ? WHERE id = ?`,
		strings.TrimSpace(firstName), strings.TrimSpace(lastName), id)
	if err != nil {
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	if err := expectAffected(res, "user", id); err != nil {
		return models.User{}, err
	}
	return s.GetUser(ctx, id)
}

// UpdateUserRole changes a user's organization role.
func (s *Store) UpdateUserRole(ctx context.Context, id int64, role models.Role) (models.User, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, int(role), id)
	if err != nil {
		return models.User{}, fmt.Errorf("update user role: %w", err)
	}
	if err := expectAffected(res, "user", id); err != nil {
		return models.User{}, err
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes a user together with memberships, assignments and comments.
// Projects they managed lose their manager. A user who created a project that
// still exists cannot be deleted.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var created int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM project_members WHERE user_id = ? AND label = ?`,
			id, labelValue(models.LabelCreator)).Scan(&created); err != nil {
			return fmt.Errorf("count created projects: %w", err)
		}
		if created > 0 {
			return apperr.Conflict("user %d created %d project(s); delete those projects first", id, created)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return expectAffected(res, "user", id)
	})
}

// JoinOrganization attaches a user without an organization to orgID as a Member.
func (s *Store) JoinOrganization(ctx context.Context, userID, orgID int64) (models.User, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET organization_id = ?, role = ? WHERE id = ? AND organization_id IS NULL`,
		orgID, int(models.RoleMember), userID)
	if err != nil {
		return models.User{}, fmt.Errorf("join organization: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.User{}, err
	}
	if affected == 0 {
		return models.User{}, apperr.Conflict("user already belongs to an organization")
	}
	return s.GetUser(ctx, userID)
}

func expectAffected(res sql.Result, entity string, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFound("%s %d not found", entity, id)
	}
	return nil
}
