package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"rhflow/internal/domain"
)

const profileColumns = `id,external_id,email,name,role,position,department_id,manager_id,created_at,updated_at`

func scanProfile(scan func(dest ...any) error) (domain.UserProfile, error) {
	var p domain.UserProfile
	var email, position sql.NullString
	var role string
	var departmentID, managerID sql.NullInt64
	err := scan(&p.ID, &p.ExternalID, &email, &p.Name, &role, &position, &departmentID, &managerID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Role = domain.ParseRole(role)
	if email.Valid {
		p.Email = email.String
	}
	p.Position = stringPtr(position)
	p.DepartmentID = int64Ptr(departmentID)
	p.ManagerID = int64Ptr(managerID)
	return p, nil
}

func (r Repo) GetProfile(ctx context.Context, id int64) (domain.UserProfile, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE id=?`, id)
	return scanProfile(row.Scan)
}

func (r Repo) GetProfileByExternalID(ctx context.Context, externalID string) (domain.UserProfile, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE external_id=?`, externalID)
	return scanProfile(row.Scan)
}

func (r Repo) ListProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+profileColumns+` FROM user_profiles ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) CountProfiles(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM user_profiles`).Scan(&n)
	return n, err
}

func (r Repo) CountProfilesTx(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM user_profiles`).Scan(&n)
	return n, err
}

func (r Repo) InsertProfile(ctx context.Context, tx *sql.Tx, p domain.UserProfile) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO user_profiles(external_id,email,name,role,position,department_id,manager_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ExternalID, nullable(p.Email), p.Name, p.Role.String(), nullableStringPtr(p.Position),
		nullableInt64Ptr(p.DepartmentID), nullableInt64Ptr(p.ManagerID), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) UpdateProfile(ctx context.Context, tx *sql.Tx, p domain.UserProfile) error {
	res, err := tx.ExecContext(ctx, `UPDATE user_profiles SET email=?, name=?, role=?, position=?, department_id=?, manager_id=?, updated_at=? WHERE id=?`,
		nullable(p.Email), p.Name, p.Role.String(), nullableStringPtr(p.Position),
		nullableInt64Ptr(p.DepartmentID), nullableInt64Ptr(p.ManagerID), p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// NextExternalID generates the next USR%04d id for admin-created users.
func (r Repo) NextExternalID(ctx context.Context, tx *sql.Tx) (string, error) {
	var maxSeq sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT MAX(CAST(SUBSTR(external_id,4) AS INTEGER)) FROM user_profiles WHERE external_id LIKE 'USR%'`).Scan(&maxSeq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("USR%04d", maxSeq.Int64+1), nil
}

// DirectReports returns the ids of profiles whose manager is the given profile.
func (r Repo) DirectReports(ctx context.Context, managerID int64) ([]int64, error) {
	return r.profileIDs(ctx, `SELECT id FROM user_profiles WHERE manager_id=?`, managerID)
}

// PeersByManager returns the ids of profiles sharing the given manager.
func (r Repo) PeersByManager(ctx context.Context, managerID int64) ([]int64, error) {
	return r.profileIDs(ctx, `SELECT id FROM user_profiles WHERE manager_id=?`, managerID)
}

func (r Repo) profileIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListProfilesByIDs returns the profiles for the given ids, ordered by name.
func (r Repo) ListProfilesByIDs(ctx context.Context, ids []int64) ([]domain.UserProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `) ORDER BY name ASC`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
