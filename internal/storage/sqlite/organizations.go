package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"teamflow/internal/apperr"
	"teamflow/internal/invite"
	"teamflow/internal/models"
)

const organizationColumns = `id, name, description, invitation_code, created_at`

func scanOrganization(row rowScanner) (models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Description, &o.InvitationCode, &o.CreatedAt)
	return o, err
}

// InvitationCodeExists is the cheap pre-check used before claiming a code.
func (s *Store) InvitationCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM organizations WHERE invitation_code = ?`, code).Scan(&n); err != nil {
		return false, fmt.Errorf("check invitation code: %w", err)
	}
	return n > 0, nil
}

// CreateOrganization inserts the organization and promotes its creator to
// Administrator in one transaction. A duplicate invitation code yields
// invite.ErrTaken so the caller can retry with another code.
func (s *Store) CreateOrganization(ctx context.Context, org models.Organization, creatorID int64) (models.Organization, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO organizations(name, description, invitation_code, created_at) VALUES(?, ?, ?, ?)`,
			strings.TrimSpace(org.Name), strings.TrimSpace(org.Description), org.InvitationCode, s.now())
		if isUniqueViolation(err) {
			return invite.ErrTaken
		}
		if err != nil {
			return fmt.Errorf("insert organization: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("organization id: %w", err)
		}

		res, err = tx.ExecContext(ctx, `UPDATE users SET organization_id = ?, role = ? WHERE id = ? AND organization_id IS NULL`,
			id, int(models.RoleAdministrator), creatorID)
		if err != nil {
			return fmt.Errorf("promote creator: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.Conflict("user already belongs to an organization")
		}
		return nil
	})
	if err != nil {
		return models.Organization{}, err
	}
	return s.GetOrganization(ctx, id)
}

// GetOrganization fetches an organization by id.
func (s *Store) GetOrganization(ctx context.Context, id int64) (models.Organization, error) {
	o, err := scanOrganization(s.db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Organization{}, apperr.NotFound("organization %d not found", id)
	}
	if err != nil {
		return models.Organization{}, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}

// GetOrganizationByCode resolves an invitation code.
func (s *Store) GetOrganizationByCode(ctx context.Context, code string) (models.Organization, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	o, err := scanOrganization(s.db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE invitation_code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Organization{}, apperr.NotFound("no organization uses invitation code %s", code)
	}
	if err != nil {
		return models.Organization{}, fmt.Errorf("get organization by code: %w", err)
	}
	return o, nil
}

// UpdateOrganization renames an organization. The invitation code never changes.
func (s *Store) UpdateOrganization(ctx context.Context, id int64, name, description string) (models.Organization, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE organizations SET name = ?, description = ? WHERE id = ?`,
		strings.TrimSpace(name), strings.TrimSpace(description), id)
	if err != nil {
		return models.Organization{}, fmt.Errorf("update organization: %w", err)
	}
	if err := expectAffected(res, "organization", id); err != nil {
		return models.Organization{}, err
	}
	return s.GetOrganization(ctx, id)
}

// DeleteOrganization removes the organization and its projects. Its users are
// detached and reset to Member so they can onboard again.
func (s *Store) DeleteOrganization(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET organization_id = NULL, role = ? WHERE organization_id = ?`, int(models.RoleMember), id); err != nil {
			return fmt.Errorf("detach users: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete organization: %w", err)
		}
		return expectAffected(res, "organization", id)
	})
}
