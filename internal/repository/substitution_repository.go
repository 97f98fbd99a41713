package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vikarapp/vikar-api/internal/models"
)

const substitutionColumns = "id, status, teacher_id, teacher_name, teacher_upn, substitute_id, substitute_name, substitute_upn, team_id, team_name, team_email, team_sds_id, renewal_count, expiration_at, created_at, updated_at"

// SubstitutionRepository is the persistence contract for substitution
// records. It applies no business logic; the lifecycle engine is the sole
// mutator of status and timestamps.
type SubstitutionRepository struct {
	db *sqlx.DB
}

// NewSubstitutionRepository constructs a SubstitutionRepository.
func NewSubstitutionRepository(db *sqlx.DB) *SubstitutionRepository {
	return &SubstitutionRepository{db: db}
}

// Find returns substitutions matching the filter, sorted by expiration
// descending. Filter predicates compose with AND; year ranges with OR.
func (r *SubstitutionRepository) Find(ctx context.Context, filter models.SubstitutionFilter) ([]models.Substitution, error) {
	query := "SELECT " + substitutionColumns + " FROM substitutions WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.TeacherUPN != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(teacher_upn) = LOWER($%d)", len(args)+1))
		args = append(args, filter.TeacherUPN)
	}
	if filter.SubstituteUPN != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(substitute_upn) = LOWER($%d)", len(args)+1))
		args = append(args, filter.SubstituteUPN)
	}
	if len(filter.IDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.IDs))
	}
	if len(filter.Years) > 0 {
		var ranges []string
		for _, year := range filter.Years {
			from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
			to := from.AddDate(1, 0, 0)
			ranges = append(ranges, fmt.Sprintf("(created_at >= $%d AND created_at < $%d)", len(args)+1, len(args)+2))
			args = append(args, from, to)
		}
		conditions = append(conditions, "("+strings.Join(ranges, " OR ")+")")
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY expiration_at DESC"

	var subs []models.Substitution
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, fmt.Errorf("find substitutions: %w", err)
	}
	return subs, nil
}

// FindPending returns every record eligible for activation, oldest first.
func (r *SubstitutionRepository) FindPending(ctx context.Context) ([]models.Substitution, error) {
	query := "SELECT " + substitutionColumns + " FROM substitutions WHERE status = $1 ORDER BY created_at ASC"
	var subs []models.Substitution
	if err := r.db.SelectContext(ctx, &subs, query, models.StatusPending); err != nil {
		return nil, fmt.Errorf("find pending substitutions: %w", err)
	}
	return subs, nil
}

// FindExpiredActive returns active records whose expiration has elapsed.
func (r *SubstitutionRepository) FindExpiredActive(ctx context.Context, now time.Time) ([]models.Substitution, error) {
	query := "SELECT " + substitutionColumns + " FROM substitutions WHERE status = $1 AND expiration_at <= $2 ORDER BY expiration_at ASC"
	var subs []models.Substitution
	if err := r.db.SelectContext(ctx, &subs, query, models.StatusActive, now); err != nil {
		return nil, fmt.Errorf("find expired substitutions: %w", err)
	}
	return subs, nil
}

// Insert persists a new substitution record.
func (r *SubstitutionRepository) Insert(ctx context.Context, sub *models.Substitution) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	const query = `INSERT INTO substitutions (id, status, teacher_id, teacher_name, teacher_upn, substitute_id, substitute_name, substitute_upn, team_id, team_name, team_email, team_sds_id, renewal_count, expiration_at, created_at, updated_at)
		VALUES (:id, :status, :teacher_id, :teacher_name, :teacher_upn, :substitute_id, :substitute_name, :substitute_upn, :team_id, :team_name, :team_email, :team_sds_id, :renewal_count, :expiration_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("insert substitution: %w", err)
	}
	return nil
}

// Renew extends a record's expiration and bumps the renewal counter. When
// resetToPending is set the record additionally returns to the pending state
// so the next activation sweep picks it up.
func (r *SubstitutionRepository) Renew(ctx context.Context, id string, expiration time.Time, resetToPending bool) error {
	query := "UPDATE substitutions SET expiration_at = $2, updated_at = $3, renewal_count = renewal_count + 1"
	args := []interface{}{id, expiration, time.Now().UTC()}
	if resetToPending {
		query += ", status = $4"
		args = append(args, models.StatusPending)
	}
	query += " WHERE id = $1"

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("renew substitution %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("renew substitution %s: no such record", id)
	}
	return nil
}

// SetStatus moves a record to the given status and stamps updated_at.
func (r *SubstitutionRepository) SetStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE substitutions SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set substitution %s status: %w", id, err)
	}
	return nil
}
