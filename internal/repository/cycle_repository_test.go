package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutoring-adm-api/internal/models"
)

func newCycleMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCycleRepositoryFindInProgressByStudent(t *testing.T) {
	db, mock, cleanup := newCycleMock(t)
	defer cleanup()
	repo := NewCycleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "cycle_number", "current_count", "total_count", "status", "started_at", "completed_at", "created_at"}).
		AddRow("c1", "s1", 2, 8, 8, "in_progress", time.Now(), nil, time.Now())
	mock.ExpectQuery(`SELECT id, student_id, cycle_number, current_count, total_count, status, started_at, completed_at, created_at FROM cycles WHERE student_id = \$1 AND status = \$2`).
		WithArgs("s1", models.CycleInProgress).
		WillReturnRows(rows)

	cycle, err := repo.FindInProgressByStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "c1", cycle.ID)
	assert.Equal(t, 2, cycle.CycleNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepositoryCreateWithSchedule(t *testing.T) {
	db, mock, cleanup := newCycleMock(t)
	defer cleanup()
	repo := NewCycleRepository(db)

	cycle := &models.Cycle{
		StudentID: "s1", CycleNumber: 1, CurrentCount: 8, TotalCount: 8,
		Status: models.CycleInProgress, StartedAt: time.Now(),
	}
	rows := []models.Attendance{
		{StudentID: "s1", Date: time.Now(), Status: models.AttendancePresent, CountsTowardCycle: true},
		{StudentID: "s1", Date: time.Now().AddDate(0, 0, 2), Status: models.AttendancePresent, CountsTowardCycle: true},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cycles").
		WillReturnResult(sqlmock.NewResult(1, 1))
	for range rows {
		mock.ExpectExec("INSERT INTO attendance").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	err := repo.CreateWithSchedule(context.Background(), cycle, rows)
	require.NoError(t, err)
	assert.NotEmpty(t, cycle.ID)
	for _, row := range rows {
		assert.Equal(t, cycle.ID, row.CycleID)
		assert.NotEmpty(t, row.ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepositoryCreateWithScheduleRollsBack(t *testing.T) {
	db, mock, cleanup := newCycleMock(t)
	defer cleanup()
	repo := NewCycleRepository(db)

	cycle := &models.Cycle{StudentID: "s1", CycleNumber: 1, Status: models.CycleInProgress}
	rows := []models.Attendance{{StudentID: "s1", Status: models.AttendancePresent, CountsTowardCycle: true}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cycles").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.CreateWithSchedule(context.Background(), cycle, rows)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepositoryCountCountable(t *testing.T) {
	db, mock, cleanup := newCycleMock(t)
	defer cleanup()
	repo := NewCycleRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendance WHERE cycle_id = \$1 AND counts_toward_cycle = true`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountCountable(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepositoryHasUnpaid(t *testing.T) {
	db, mock, cleanup := newCycleMock(t)
	defer cleanup()
	repo := NewCycleRepository(db)

	mock.ExpectQuery(`SELECT status FROM payments WHERE cycle_id = \$1 LIMIT 1`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))

	exists, unpaid, err := repo.HasUnpaid(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, unpaid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepositoryHasUnpaidNoPayment(t *testing.T) {
	db, mock, cleanup := newCycleMock(t)
	defer cleanup()
	repo := NewCycleRepository(db)

	mock.ExpectQuery(`SELECT status FROM payments WHERE cycle_id = \$1 LIMIT 1`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	exists, unpaid, err := repo.HasUnpaid(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.False(t, unpaid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepositoryListAlerts(t *testing.T) {
	db, mock, cleanup := newCycleMock(t)
	defer cleanup()
	repo := NewCycleRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "student_name", "class_group_name", "cycle_id", "cycle_number", "current_count", "total_count", "status"}).
		AddRow("s1", "김민준", "월수 6시", "c1", 2, 8, 8, "in_progress").
		AddRow("s2", "박서연", nil, "c2", 1, 7, 8, "in_progress")
	mock.ExpectQuery("SELECT c.student_id, s.name AS student_name").
		WithArgs(7, models.StatusActive).
		WillReturnRows(rows)

	alerts, err := repo.ListAlerts(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, 8, alerts[0].CurrentCount)
	assert.Nil(t, alerts[1].ClassGroupName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
