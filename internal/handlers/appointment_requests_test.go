package handlers

import (
	"net/http"
	"testing"
	"time"

	"clinica-server/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequestRouter(t *testing.T, callerID string, role models.Role) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()

	db, mock := newTestDB(t)
	h := NewAppointmentRequestHandler(db, zerolog.Nop())

	router := gin.New()
	group := router.Group("/appointment-requests", authAs(callerID, role))
	group.POST("", h.CreateRequest)
	group.GET("", h.GetRequests)
	group.PUT("/:id", h.UpdateRequest)
	group.DELETE("/:id", h.CancelRequest)
	return router, mock
}

func requestRow(id, patientID string, status models.RequestStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "patient_id", "message",
		"specialty", "type", "status", "rejection_reason", "assigned_doctor_id",
	}).AddRow(id, time.Now(), time.Now(), patientID, "Necesito una consulta",
		"cardiologia", "presencial", string(status), "", "")
}

func TestCreateRequestRejectsDuplicatePending(t *testing.T) {
	router, mock := newRequestRouter(t, testPatientID, models.RolePatient)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointment_requests`").
		WithArgs(testPatientID, "pendiente").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	w := doRequest(t, router, http.MethodPost, "/appointment-requests", `{"message":"Necesito una consulta"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "pending appointment request")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequestStartsPendiente(t *testing.T) {
	router, mock := newRequestRouter(t, testPatientID, models.RolePatient)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `appointment_requests`").
		WithArgs(testPatientID, "pendiente").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO `appointment_requests`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	w := doRequest(t, router, http.MethodPost, "/appointment-requests",
		`{"message":"Necesito una consulta","specialty":"cardiologia","type":"virtual"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pendiente"`)
	assert.Contains(t, w.Body.String(), `"type":"virtual"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRequestRejectsAlreadyProcessed(t *testing.T) {
	router, mock := newRequestRouter(t, testDoctorID, models.RoleDoctor)

	reqID := "55555555-5555-5555-5555-555555555555"
	mock.ExpectQuery("SELECT \\* FROM `appointment_requests` WHERE id = \\?").
		WillReturnRows(requestRow(reqID, testPatientID, models.RequestAceptada))

	w := doRequest(t, router, http.MethodPut, "/appointment-requests/"+reqID, `{"status":"rechazada"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already processed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRequestNormalizesAprobada(t *testing.T) {
	router, mock := newRequestRouter(t, testDoctorID, models.RoleDoctor)

	reqID := "55555555-5555-5555-5555-555555555555"
	mock.ExpectQuery("SELECT \\* FROM `appointment_requests` WHERE id = \\?").
		WillReturnRows(requestRow(reqID, testPatientID, models.RequestPendiente))
	mock.ExpectExec("UPDATE `appointment_requests` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `notifications`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	w := doRequest(t, router, http.MethodPut, "/appointment-requests/"+reqID, `{"status":"aprobada"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"aceptada"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRequestRecordsRejectionReason(t *testing.T) {
	router, mock := newRequestRouter(t, testAdminID, models.RoleAdmin)

	reqID := "55555555-5555-5555-5555-555555555555"
	mock.ExpectQuery("SELECT \\* FROM `appointment_requests` WHERE id = \\?").
		WillReturnRows(requestRow(reqID, testPatientID, models.RequestPendiente))
	mock.ExpectExec("UPDATE `appointment_requests` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `notifications`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	w := doRequest(t, router, http.MethodPut, "/appointment-requests/"+reqID,
		`{"status":"rechazada","rejectionReason":"Sin disponibilidad"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"rechazada"`)
	assert.Contains(t, w.Body.String(), "Sin disponibilidad")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRequestForbiddenForOtherPatient(t *testing.T) {
	router, mock := newRequestRouter(t, testAdminID, models.RolePatient)

	reqID := "55555555-5555-5555-5555-555555555555"
	mock.ExpectQuery("SELECT \\* FROM `appointment_requests` WHERE id = \\?").
		WillReturnRows(requestRow(reqID, testPatientID, models.RequestPendiente))

	w := doRequest(t, router, http.MethodDelete, "/appointment-requests/"+reqID, "")

	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRequestOnlyWhilePending(t *testing.T) {
	router, mock := newRequestRouter(t, testPatientID, models.RolePatient)

	reqID := "55555555-5555-5555-5555-555555555555"
	mock.ExpectQuery("SELECT \\* FROM `appointment_requests` WHERE id = \\?").
		WillReturnRows(requestRow(reqID, testPatientID, models.RequestAceptada))

	w := doRequest(t, router, http.MethodDelete, "/appointment-requests/"+reqID, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Only pending")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRequestSoftDeletes(t *testing.T) {
	router, mock := newRequestRouter(t, testPatientID, models.RolePatient)

	reqID := "55555555-5555-5555-5555-555555555555"
	mock.ExpectQuery("SELECT \\* FROM `appointment_requests` WHERE id = \\?").
		WillReturnRows(requestRow(reqID, testPatientID, models.RequestPendiente))
	mock.ExpectExec("UPDATE `appointment_requests` SET `deleted_at`").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doRequest(t, router, http.MethodDelete, "/appointment-requests/"+reqID, "")

	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
