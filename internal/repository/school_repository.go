package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vikarapp/vikar-api/internal/models"
)

const schoolColumns = "id, name, permitted_schools, created_at, updated_at"

// SchoolRepository manages persistence for schools and their delegation
// sets.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs a SchoolRepository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// List returns all schools sorted by name.
func (r *SchoolRepository) List(ctx context.Context) ([]models.School, error) {
	query := "SELECT " + schoolColumns + " FROM schools ORDER BY name ASC"
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query); err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	return schools, nil
}

// FindByName fetches a school by its exact name.
func (r *SchoolRepository) FindByName(ctx context.Context, name string) (*models.School, error) {
	query := "SELECT " + schoolColumns + " FROM schools WHERE name = $1"
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, name); err != nil {
		return nil, err
	}
	return &school, nil
}

// FindByID fetches a school by id.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	query := "SELECT " + schoolColumns + " FROM schools WHERE id = $1"
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// Create inserts a new school record.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if school.CreatedAt.IsZero() {
		school.CreatedAt = now
	}
	school.UpdatedAt = now
	if school.PermittedSchools == nil {
		school.PermittedSchools = models.LocationList{}
	}

	const query = `INSERT INTO schools (id, name, permitted_schools, created_at, updated_at)
		VALUES (:id, :name, :permitted_schools, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// ReplaceDelegations overwrites the school's permitted-schools set.
func (r *SchoolRepository) ReplaceDelegations(ctx context.Context, id string, locations models.LocationList) error {
	const query = `UPDATE schools SET permitted_schools = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, locations, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("replace school %s delegations: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("replace school %s delegations: no such school", id)
	}
	return nil
}
