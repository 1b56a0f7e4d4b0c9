package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamvault/backend/internal/audit/domain"
)

var auditCols = []string{"id", "user_id", "action", "resource", "ip", "metadata", "created_at"}

func TestPostgresRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	entry := &domain.AuditLog{
		ID: "log-1", UserID: "user-1",
		Action: "auth.login", Resource: "session:sess-1",
		IP: "203.0.113.7", Metadata: `{"remember_me":true}`,
		CreatedAt: time.Now(),
	}
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(entry.ID, entry.UserID, entry.Action, entry.Resource, entry.IP, entry.Metadata, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPostgresRepository(mock)
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListByUser(t *testing.T) {
	tests := []struct {
		name      string
		limit     int32
		setupMock func(mock pgxmock.PgxPoolIface)
		wantLen   int
		wantErr   bool
	}{
		{
			name:  "returns rows newest first",
			limit: 10,
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(auditCols).
					AddRow("log-2", "user-1", "auth.logout", "session:sess-1", "203.0.113.7", "", time.Now()).
					AddRow("log-1", "user-1", "auth.login", "session:sess-1", "203.0.113.7", "", time.Now().Add(-time.Minute))
				mock.ExpectQuery(`FROM audit_logs WHERE user_id =`).
					WithArgs("user-1", int32(10)).
					WillReturnRows(rows)
			},
			wantLen: 2,
		},
		{
			name:  "zero limit falls back to the default",
			limit: 0,
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM audit_logs WHERE user_id =`).
					WithArgs("user-1", int32(50)).
					WillReturnRows(pgxmock.NewRows(auditCols))
			},
		},
		{
			name:  "database error",
			limit: 10,
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM audit_logs WHERE user_id =`).
					WithArgs("user-1", int32(10)).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setupMock(mock)

			repo := NewPostgresRepository(mock)
			got, err := repo.ListByUser(context.Background(), "user-1", tt.limit)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, "log-2", got[0].ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
