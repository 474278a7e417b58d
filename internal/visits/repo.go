package visits

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Schema creates the visit table.
const Schema = `
CREATE TABLE IF NOT EXISTS checkin_visits (
	id          UUID PRIMARY KEY,
	flow_id     TEXT NOT NULL,
	slug        TEXT NOT NULL,
	state       TEXT NOT NULL,
	error_kind  TEXT NOT NULL DEFAULT '',
	student_id  TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS checkin_visits_slug_idx ON checkin_visits (slug, ended_at DESC);
`

// Repository persists visits in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the table and index when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Insert stores v. A visit whose id already exists is left untouched and
// reported as not created, so redelivered events are harmless.
func (r *Repository) Insert(ctx context.Context, v Visit) (bool, error) {
	if err := v.validate(); err != nil {
		return false, err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.EndedAt.IsZero() {
		v.EndedAt = time.Now().UTC()
	}
	if v.StartedAt.IsZero() {
		v.StartedAt = v.EndedAt
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO checkin_visits (id, flow_id, slug, state, error_kind, student_id, status, started_at, ended_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at
	`, v.ID, v.FlowID, v.Slug, v.State, v.ErrorKind, v.StudentID, v.Status, v.StartedAt, v.EndedAt)
	var created time.Time
	if err := row.Scan(&created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Filter narrows List.
type Filter struct {
	Slug   string
	State  string
	Limit  int
	Offset int
}

// List returns visits newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Visit, error) {
	query, args := listQuery(f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Visit
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.ID, &v.FlowID, &v.Slug, &v.State, &v.ErrorKind, &v.StudentID, &v.Status, &v.StartedAt, &v.EndedAt, &v.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// Summary counts visits of slug by final state.
func (r *Repository) Summary(ctx context.Context, slug string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT state, COUNT(*) FROM checkin_visits WHERE slug = $1 GROUP BY state
	`, slug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[state] = n
	}
	return out, rows.Err()
}

func listQuery(f Filter) (string, []any) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	query := `SELECT id, flow_id, slug, state, error_kind, student_id, status, started_at, ended_at, created_at FROM checkin_visits`
	var args []any
	var clauses []string
	if f.Slug != "" {
		args = append(args, f.Slug)
		clauses = append(clauses, "slug = $"+strconv.Itoa(len(args)))
	}
	if f.State != "" {
		args = append(args, f.State)
		clauses = append(clauses, "state = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY ended_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)
	return query, args
}
