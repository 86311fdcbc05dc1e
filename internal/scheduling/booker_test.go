package scheduling

import (
	"context"
	"testing"
	"time"

	"clinica-server/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	testPatientID = "6ba7b810-9dad-11d1-80b4-00c04fd430c1"
	testDoctorID  = "6ba7b810-9dad-11d1-80b4-00c04fd430c2"
)

func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func countRows(n int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count(*)"}).AddRow(n)
}

func TestMeetingLinkFormat(t *testing.T) {
	link := MeetingLink("http://localhost:3001/", testDoctorID, testPatientID)
	assert.Equal(t, "http://localhost:3001/ConsultaMedica-"+testDoctorID+"-"+testPatientID, link)

	// Derivation is deterministic: same pair, same room.
	assert.Equal(t, link, MeetingLink("http://localhost:3001", testDoctorID, testPatientID))
}

func TestBookVirtualDerivesMeetingLink(t *testing.T) {
	db, mock := newTestDB(t)
	booker := NewBooker(db, "http://localhost:3001")
	when := time.Date(2025, 8, 20, 15, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointments`.*FOR UPDATE").WillReturnRows(countRows(0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointments`.*FOR UPDATE").WillReturnRows(countRows(0))
	mock.ExpectExec("INSERT INTO `appointments`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	appt, err := booker.Book(context.Background(), BookingParams{
		PatientID: testPatientID,
		DoctorID:  testDoctorID,
		Date:      when,
		Type:      models.TypeVirtual,
		Location:  "should be ignored",
		Room:      "also ignored",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "http://localhost:3001/ConsultaMedica-"+testDoctorID+"-"+testPatientID, appt.MeetingLink)
	assert.Empty(t, appt.Location)
	assert.Empty(t, appt.Room)
	assert.Equal(t, models.StatusProgramada, appt.Status)
	assert.NotEmpty(t, appt.ID)
}

func TestBookPresencialKeepsLocation(t *testing.T) {
	db, mock := newTestDB(t)
	booker := NewBooker(db, "http://localhost:3001")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointments`").WillReturnRows(countRows(0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointments`").WillReturnRows(countRows(0))
	mock.ExpectExec("INSERT INTO `appointments`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	appt, err := booker.Book(context.Background(), BookingParams{
		PatientID: testPatientID,
		DoctorID:  testDoctorID,
		Date:      time.Date(2025, 8, 20, 15, 0, 0, 0, time.UTC),
		Type:      models.TypePresencial,
		Location:  "Sede Norte",
		Room:      "203",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "Sede Norte", appt.Location)
	assert.Equal(t, "203", appt.Room)
	assert.Empty(t, appt.MeetingLink)
}

func TestBookRejectsOccupiedSlot(t *testing.T) {
	db, mock := newTestDB(t)
	booker := NewBooker(db, "http://localhost:3001")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointments`").WillReturnRows(countRows(1))
	mock.ExpectRollback()

	_, err := booker.Book(context.Background(), BookingParams{
		PatientID: testPatientID,
		DoctorID:  testDoctorID,
		Date:      time.Date(2025, 8, 20, 15, 0, 0, 0, time.UTC),
		Type:      models.TypeVirtual,
	})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRejectsEarlierPendingAppointment(t *testing.T) {
	db, mock := newTestDB(t)
	booker := NewBooker(db, "http://localhost:3001")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointments`").WillReturnRows(countRows(0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointments`").WillReturnRows(countRows(1))
	mock.ExpectRollback()

	_, err := booker.Book(context.Background(), BookingParams{
		PatientID: testPatientID,
		DoctorID:  testDoctorID,
		Date:      time.Date(2025, 8, 20, 15, 0, 0, 0, time.UTC),
		Type:      models.TypeVirtual,
	})
	assert.ErrorIs(t, err, ErrPriorPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookPresencialRequiresLocationAndRoom(t *testing.T) {
	db, _ := newTestDB(t)
	booker := NewBooker(db, "http://localhost:3001")

	_, err := booker.Book(context.Background(), BookingParams{
		PatientID: testPatientID,
		DoctorID:  testDoctorID,
		Date:      time.Now(),
		Type:      models.TypePresencial,
		Location:  "Sede Norte",
		// Room missing
	})
	assert.ErrorIs(t, err, ErrMissingLocation)
}

func TestTransitionRejectsInvalidEdge(t *testing.T) {
	db, _ := newTestDB(t)
	booker := NewBooker(db, "http://localhost:3001")

	appt := &models.Appointment{Status: models.StatusFinalizada}
	err := booker.Transition(context.Background(), appt, models.StatusEnAtencion)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.StatusFinalizada, appt.Status)
}

func TestTransitionAppliesValidEdge(t *testing.T) {
	db, mock := newTestDB(t)
	booker := NewBooker(db, "http://localhost:3001")

	mock.ExpectExec("UPDATE `appointments` SET").WillReturnResult(sqlmock.NewResult(0, 1))

	appt := &models.Appointment{
		BaseModel: models.BaseModel{ID: "a1b2c3d4-0000-0000-0000-000000000001"},
		PatientID: testPatientID,
		DoctorID:  testDoctorID,
		Status:    models.StatusEnAtencion,
	}
	err := booker.Transition(context.Background(), appt, models.StatusFinalizada)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinalizada, appt.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleChecksNewSlot(t *testing.T) {
	db, mock := newTestDB(t)
	booker := NewBooker(db, "http://localhost:3001")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointments`.*FOR UPDATE").WillReturnRows(countRows(1))
	mock.ExpectRollback()

	appt := &models.Appointment{
		BaseModel: models.BaseModel{ID: "a1b2c3d4-0000-0000-0000-000000000001"},
		PatientID: testPatientID,
		DoctorID:  testDoctorID,
		Date:      time.Date(2025, 8, 20, 15, 0, 0, 0, time.UTC),
		Status:    models.StatusProgramada,
	}
	err := booker.Reschedule(context.Background(), appt, time.Date(2025, 8, 21, 15, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Equal(t, models.StatusProgramada, appt.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleMovesDateAndStatus(t *testing.T) {
	db, mock := newTestDB(t)
	booker := NewBooker(db, "http://localhost:3001")
	newDate := time.Date(2025, 8, 21, 15, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointments`").WillReturnRows(countRows(0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointments`").WillReturnRows(countRows(0))
	mock.ExpectExec("UPDATE `appointments` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	appt := &models.Appointment{
		BaseModel: models.BaseModel{ID: "a1b2c3d4-0000-0000-0000-000000000001"},
		PatientID: testPatientID,
		DoctorID:  testDoctorID,
		Date:      time.Date(2025, 8, 20, 15, 0, 0, 0, time.UTC),
		Status:    models.StatusProgramada,
	}
	err := booker.Reschedule(context.Background(), appt, newDate)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReprogramada, appt.Status)
	assert.Equal(t, newDate, appt.Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleRejectsTerminalStatus(t *testing.T) {
	db, _ := newTestDB(t)
	booker := NewBooker(db, "http://localhost:3001")

	appt := &models.Appointment{Status: models.StatusCancelada}
	err := booker.Reschedule(context.Background(), appt, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionReactivationChecksSlot(t *testing.T) {
	db, mock := newTestDB(t)
	booker := NewBooker(db, "http://localhost:3001")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointments`.*FOR UPDATE").WillReturnRows(countRows(1))
	mock.ExpectRollback()

	appt := &models.Appointment{
		BaseModel: models.BaseModel{ID: "a1b2c3d4-0000-0000-0000-000000000001"},
		PatientID: testPatientID,
		DoctorID:  testDoctorID,
		Date:      time.Date(2025, 8, 20, 15, 0, 0, 0, time.UTC),
		Status:    models.StatusReprogramada,
	}
	err := booker.Transition(context.Background(), appt, models.StatusProgramada)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Equal(t, models.StatusReprogramada, appt.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionReactivationWithFreeSlot(t *testing.T) {
	db, mock := newTestDB(t)
	booker := NewBooker(db, "http://localhost:3001")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointments`").WillReturnRows(countRows(0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointments`").WillReturnRows(countRows(0))
	mock.ExpectExec("UPDATE `appointments` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	appt := &models.Appointment{
		BaseModel: models.BaseModel{ID: "a1b2c3d4-0000-0000-0000-000000000001"},
		PatientID: testPatientID,
		DoctorID:  testDoctorID,
		Date:      time.Date(2025, 8, 20, 15, 0, 0, 0, time.UTC),
		Status:    models.StatusReprogramada,
	}
	err := booker.Transition(context.Background(), appt, models.StatusProgramada)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProgramada, appt.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishAllByPatientReportsUpdatedCount(t *testing.T) {
	db, mock := newTestDB(t)
	booker := NewBooker(db, "http://localhost:3001")

	mock.ExpectExec("UPDATE `appointments` SET").WillReturnResult(sqlmock.NewResult(0, 3))

	updated, err := booker.FinishAllByPatient(context.Background(), testPatientID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}
