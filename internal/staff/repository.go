package staff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffdir/staffdir/internal/shared"
)

// Repository provides PostgreSQL backed persistence for staff and departments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const staffColumns = `id, registration_number, first_name, last_name, COALESCE(email, ''), phone, gender,
       department, position, employment_type, date_of_joining, status, COALESCE(pin_hash, ''),
       created_at, updated_at`

func scanStaff(row pgx.Row) (Staff, error) {
	var (
		s      Staff
		status string
	)
	err := row.Scan(&s.ID, &s.RegistrationNumber, &s.FirstName, &s.LastName, &s.Email, &s.Phone, &s.Gender,
		&s.Department, &s.Position, &s.EmploymentType, &s.DateOfJoining, &status, &s.PINHash,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Staff{}, shared.ErrNotFound
		}
		return Staff{}, err
	}
	s.Status = Status(status)
	return s, nil
}

func collectStaff(rows pgx.Rows) ([]Staff, error) {
	defer rows.Close()
	list := make([]Staff, 0)
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// List returns staff records, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Staff, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch {
	case filter.Search != "":
		rows, err = r.pool.Query(ctx, `SELECT `+staffColumns+` FROM staff
WHERE first_name ILIKE $1 OR last_name ILIKE $1 OR registration_number ILIKE $1
   OR department ILIKE $1 OR position ILIKE $1
ORDER BY created_at DESC, id DESC`, "%"+filter.Search+"%")
	case filter.Department != "":
		rows, err = r.pool.Query(ctx, `SELECT `+staffColumns+` FROM staff WHERE department = $1 ORDER BY created_at DESC, id DESC`, filter.Department)
	default:
		rows, err = r.pool.Query(ctx, `SELECT `+staffColumns+` FROM staff ORDER BY created_at DESC, id DESC`)
	}
	if err != nil {
		return nil, err
	}
	return collectStaff(rows)
}

// Get loads one staff record.
func (r *Repository) Get(ctx context.Context, id int64) (Staff, error) {
	return scanStaff(r.pool.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id))
}

// Create inserts a staff record.
func (r *Repository) Create(ctx context.Context, in CreateInput) (Staff, error) {
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	s, err := scanStaff(r.pool.QueryRow(ctx, `INSERT INTO staff
    (registration_number, first_name, last_name, email, phone, gender, department, position, employment_type, date_of_joining, status)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)
RETURNING `+staffColumns,
		in.RegistrationNumber, in.FirstName, in.LastName, in.Email, in.Phone, in.Gender,
		in.Department, in.Position, in.EmploymentType, in.DateOfJoining, string(status)))
	if err != nil {
		return Staff{}, uniqueViolation(err, "registration number")
	}
	return s, nil
}

// Update applies non-nil fields.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (Staff, error) {
	var status *string
	if in.Status != nil {
		v := string(*in.Status)
		status = &v
	}
	return scanStaff(r.pool.QueryRow(ctx, `UPDATE staff SET
    first_name = COALESCE($2, first_name),
    last_name = COALESCE($3, last_name),
    email = COALESCE($4, email),
    phone = COALESCE($5, phone),
    department = COALESCE($6, department),
    position = COALESCE($7, position),
    employment_type = COALESCE($8, employment_type),
    status = COALESCE($9, status),
    updated_at = NOW()
WHERE id = $1
RETURNING `+staffColumns,
		id, in.FirstName, in.LastName, in.Email, in.Phone, in.Department, in.Position, in.EmploymentType, status))
}

// Delete removes a staff record and returns it. Access log rows about the
// record are kept.
func (r *Repository) Delete(ctx context.Context, id int64) (Staff, error) {
	return scanStaff(r.pool.QueryRow(ctx, `DELETE FROM staff WHERE id = $1 RETURNING `+staffColumns, id))
}

// SetPINHash stores a PIN hash. An empty hash clears the PIN.
func (r *Repository) SetPINHash(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE staff SET pin_hash = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListDepartments returns departments by name with live staff counts.
func (r *Repository) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx, `SELECT d.id, d.name, COALESCE(d.description, ''), d.icon, d.color,
       (SELECT COUNT(*) FROM staff s WHERE s.department = d.name), d.created_at
FROM departments d ORDER BY d.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]Department, 0)
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Icon, &d.Color, &d.StaffCount, &d.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateDepartment inserts a department.
func (r *Repository) CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error) {
	var d Department
	err := r.pool.QueryRow(ctx, `INSERT INTO departments (name, description, icon, color)
VALUES ($1, NULLIF($2, ''), $3, $4)
RETURNING id, name, COALESCE(description, ''), icon, color, created_at`,
		in.Name, in.Description, in.Icon, in.Color).
		Scan(&d.ID, &d.Name, &d.Description, &d.Icon, &d.Color, &d.CreatedAt)
	if err != nil {
		return Department{}, uniqueViolation(err, "department")
	}
	return d, nil
}

// Stats aggregates directory counts in one round trip.
func (r *Repository) Stats(ctx context.Context, since time.Time) (Stats, error) {
	var st Stats
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'active'),
       (SELECT COUNT(*) FROM departments),
       COUNT(*) FILTER (WHERE created_at > $1)
FROM staff`, since).Scan(&st.TotalStaff, &st.ActiveStaff, &st.TotalDepartments, &st.RecentAdditions)
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

func uniqueViolation(err error, what string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("staff: %s already exists: %w", what, shared.ErrConflict)
	}
	return err
}
