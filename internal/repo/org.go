package repo

import (
	"context"
	"database/sql"
	"fmt"

	"rhflow/internal/domain"
)

const departmentColumns = `id,code,name,manager_id,phone,created_at,updated_at`

func scanDepartment(scan func(dest ...any) error) (domain.Department, error) {
	var d domain.Department
	var managerID sql.NullInt64
	var phone sql.NullString
	err := scan(&d.ID, &d.Code, &d.Name, &managerID, &phone, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	d.ManagerID = int64Ptr(managerID)
	d.Phone = stringPtr(phone)
	return d, nil
}

func (r Repo) GetDepartment(ctx context.Context, id int64) (domain.Department, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id=?`, id)
	return scanDepartment(row.Scan)
}

func (r Repo) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+departmentColumns+` FROM departments ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Department
	for rows.Next() {
		d, err := scanDepartment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) InsertDepartment(ctx context.Context, tx *sql.Tx, d domain.Department) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO departments(code,name,manager_id,phone,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		d.Code, d.Name, nullableInt64Ptr(d.ManagerID), nullableStringPtr(d.Phone), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) UpdateDepartment(ctx context.Context, tx *sql.Tx, d domain.Department) error {
	res, err := tx.ExecContext(ctx, `UPDATE departments SET code=?, name=?, manager_id=?, phone=?, updated_at=? WHERE id=?`,
		d.Code, d.Name, nullableInt64Ptr(d.ManagerID), nullableStringPtr(d.Phone), d.UpdatedAt, d.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const positionColumns = `id,code,name,role,active,inactivated_at,created_at,updated_at`

func scanPosition(scan func(dest ...any) error) (domain.Position, error) {
	var p domain.Position
	var role string
	var active int
	var inactivatedAt sql.NullString
	err := scan(&p.ID, &p.Code, &p.Name, &role, &active, &inactivatedAt, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Role = domain.ParseRole(role)
	p.Active = active != 0
	p.InactivatedAt = stringPtr(inactivatedAt)
	return p, nil
}

func (r Repo) GetPosition(ctx context.Context, id int64) (domain.Position, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE id=?`, id)
	return scanPosition(row.Scan)
}

func (r Repo) GetPositionTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Position, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE id=?`, id)
	return scanPosition(row.Scan)
}

type PositionFilters struct {
	Role       domain.Role
	ActiveOnly bool
}

func (r Repo) ListPositions(ctx context.Context, f PositionFilters) ([]domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions`
	var clauses []string
	var args []any
	if f.Role != domain.RoleUnknown {
		clauses = append(clauses, "role=?")
		args = append(args, f.Role.String())
	}
	if f.ActiveOnly {
		clauses = append(clauses, "active=1")
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += ` ORDER BY role ASC, name ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// PositionNameExists reports whether another position with this name already
// exists for the role. excludeID skips the position being edited.
func (r Repo) PositionNameExists(ctx context.Context, tx *sql.Tx, name string, role domain.Role, excludeID int64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM positions WHERE name=? AND role=? AND id<>?`, name, role.String(), excludeID).Scan(&n)
	return n > 0, err
}

// NextPositionCode generates the next CRG%04d code.
func (r Repo) NextPositionCode(ctx context.Context, tx *sql.Tx) (string, error) {
	var maxSeq sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT MAX(CAST(SUBSTR(code,4) AS INTEGER)) FROM positions WHERE code LIKE 'CRG%'`).Scan(&maxSeq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CRG%04d", maxSeq.Int64+1), nil
}

func (r Repo) InsertPosition(ctx context.Context, tx *sql.Tx, p domain.Position) (int64, error) {
	active := 0
	if p.Active {
		active = 1
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO positions(code,name,role,active,inactivated_at,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		p.Code, p.Name, p.Role.String(), active, nullableStringPtr(p.InactivatedAt), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdatePosition writes name/role/active and stamps inactivated_at only when
// the active flag drops from 1 to 0.
func (r Repo) UpdatePosition(ctx context.Context, tx *sql.Tx, p domain.Position, now string) error {
	active := 0
	if p.Active {
		active = 1
	}
	res, err := tx.ExecContext(ctx, `UPDATE positions SET name=?, role=?, active=?,
inactivated_at=CASE WHEN active=1 AND ?=0 THEN ? ELSE inactivated_at END,
updated_at=? WHERE id=?`,
		p.Name, p.Role.String(), active, active, now, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
