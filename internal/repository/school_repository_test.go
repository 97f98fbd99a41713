package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikarapp/vikar-api/internal/models"
)

func newSchoolMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSchoolRepositoryFindByNameScansDelegations(t *testing.T) {
	db, mock, cleanup := newSchoolMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "name", "permitted_schools", "created_at", "updated_at"}).
		AddRow("school-1", "North School", []byte(`[{"id":"loc-2","name":"South School"}]`), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, permitted_schools, created_at, updated_at FROM schools WHERE name = $1")).
		WithArgs("North School").
		WillReturnRows(rows)

	school, err := repo.FindByName(context.Background(), "North School")
	require.NoError(t, err)
	require.Len(t, school.PermittedSchools, 1)
	assert.Equal(t, "South School", school.PermittedSchools[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryCreateDefaultsDelegations(t *testing.T) {
	db, mock, cleanup := newSchoolMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectExec("INSERT INTO schools").
		WillReturnResult(sqlmock.NewResult(1, 1))

	school := &models.School{Name: "North School"}
	require.NoError(t, repo.Create(context.Background(), school))
	assert.NotEmpty(t, school.ID)
	assert.NotNil(t, school.PermittedSchools)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryReplaceDelegationsMissingSchool(t *testing.T) {
	db, mock, cleanup := newSchoolMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectExec("UPDATE schools SET permitted_schools").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ReplaceDelegations(context.Background(), "school-404", models.LocationList{})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
