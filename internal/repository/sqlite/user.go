package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coalops/minesafe/pkg/models"
)

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if u == nil {
		return 0, fmt.Errorf("user is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO users (name, email, role, password_hash, updated) VALUES (?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.Role, u.PasswordHash, now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, email, role, password_hash, updated FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *SQLiteRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, email, role, password_hash, updated FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// ListByRole lists users by normalized role: asking for employees also returns
// rows stored with the legacy "worker" spelling.
func (r *SQLiteRepo) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	norm := models.NormalizeRole(role)

	q := `SELECT id, name, email, role, password_hash, updated FROM users WHERE role = ? ORDER BY id`
	args := []any{norm}
	if norm == models.RoleEmployee {
		q = `SELECT id, name, email, role, password_hash, updated FROM users WHERE role IN (?, ?) ORDER BY id`
		args = []any{models.RoleEmployee, models.RoleWorker}
	}

	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		var hash sql.NullString
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &hash, &u.Updated); err != nil {
			return nil, err
		}
		u.PasswordHash = hash.String
		out = append(out, u)
	}

	return out, rows.Err()
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var hash sql.NullString
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &hash, &u.Updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.PasswordHash = hash.String
	return &u, nil
}
