package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikarapp/vikar-api/internal/models"
)

func TestAuditRepositoryInsertAssignsID(t *testing.T) {
	db, mock, cleanup := newSubstitutionMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(`INSERT INTO audit_logs`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.AuditEntry{
		Type:      models.AuditTypeInfo,
		Message:   "activation sweep completed",
		SessionID: "session-1",
		Endpoint:  "activation-sweep",
		StartedAt: time.Now().UTC(),
		EndedAt:   time.Now().UTC(),
	}
	err := repo.Insert(context.Background(), entry)

	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListComposesTimeRange(t *testing.T) {
	db, mock, cleanup := newSubstitutionMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "type", "message", "session_id", "origin", "method",
		"endpoint", "url", "requestor", "duration_ms", "data",
		"started_at", "ended_at",
	}).AddRow(
		"log-1", models.AuditTypeInfo, "substitution batch processed", "session-1",
		"", "POST", "/api/v1/substitutions", "/api/v1/substitutions",
		nil, int64(12), nil, now, now,
	)

	mock.ExpectQuery(`WHERE 1=1 AND started_at >= \$1 AND started_at <= \$2 ORDER BY started_at DESC`).
		WithArgs(from, now).
		WillReturnRows(rows)

	entries, err := repo.List(context.Background(), models.AuditFilter{From: &from, To: &now})

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "substitution batch processed", entries[0].Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListWithoutFilter(t *testing.T) {
	db, mock, cleanup := newSubstitutionMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectQuery(`FROM audit_logs WHERE 1=1 ORDER BY started_at DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	entries, err := repo.List(context.Background(), models.AuditFilter{})

	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}
