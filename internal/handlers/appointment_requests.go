package handlers

import (
	"errors"
	"time"

	"clinica-server/internal/middleware"
	"clinica-server/internal/models"
	"clinica-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// AppointmentRequestHandler handles the pre-booking request workflow:
// a patient files a request, a doctor or admin resolves it exactly once.
type AppointmentRequestHandler struct {
	DB  *gorm.DB
	Log zerolog.Logger
}

// NewAppointmentRequestHandler creates a new AppointmentRequestHandler.
func NewAppointmentRequestHandler(db *gorm.DB, log zerolog.Logger) *AppointmentRequestHandler {
	return &AppointmentRequestHandler{DB: db, Log: log}
}

// CreateAppointmentRequestBody represents the request body for filing a request.
type CreateAppointmentRequestBody struct {
	Message       string     `json:"message" binding:"required"`
	PreferredDate *time.Time `json:"preferredDate"`
	Specialty     string     `json:"specialty"`
	Type          string     `json:"type" binding:"omitempty,oneof=presencial virtual"`
}

// CreateRequest files a new appointment request for the authenticated
// patient. A patient may only hold one pending request at a time.
func (h *AppointmentRequestHandler) CreateRequest(c *gin.Context) {
	var req CreateAppointmentRequestBody
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patientID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "Patient ID not found in token")
		return
	}

	var pending int64
	if err := h.DB.Model(&models.AppointmentRequest{}).
		Where("patient_id = ? AND status = ?", patientID, models.RequestPendiente).
		Count(&pending).Error; err != nil {
		utils.InternalServerError(c, "Database error checking pending requests: "+err.Error())
		return
	}
	if pending > 0 {
		utils.Conflict(c, "You already have a pending appointment request")
		return
	}

	request := models.AppointmentRequest{
		PatientID:     patientID,
		Message:       req.Message,
		PreferredDate: req.PreferredDate,
		Specialty:     req.Specialty,
		Type:          models.TypePresencial,
		Status:        models.RequestPendiente,
	}
	if req.Type != "" {
		request.Type = models.AppointmentType(req.Type)
	}

	if err := h.DB.Create(&request).Error; err != nil {
		utils.InternalServerError(c, "Failed to create appointment request: "+err.Error())
		return
	}

	utils.Created(c, "Appointment request created successfully", request)
}

// GetRequests lists appointment requests. Patients see only their own;
// doctors and admins may filter by patientId and/or status.
func (h *AppointmentRequestHandler) GetRequests(c *gin.Context) {
	callerID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	callerRole, _ := middleware.GetUserRoleFromContext(c)

	query := h.DB.Preload("Patient").Preload("AssignedDoctor").Order("created_at desc")

	if callerRole == models.RolePatient {
		query = query.Where("patient_id = ?", callerID)
	} else {
		if patientID := c.Query("patientId"); patientID != "" {
			query = query.Where("patient_id = ?", patientID)
		}
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", normalizeRequestStatus(status))
	}

	var requests []models.AppointmentRequest
	if err := query.Find(&requests).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch appointment requests: "+err.Error())
		return
	}

	utils.Success(c, "Appointment requests fetched successfully", requests)
}

// UpdateAppointmentRequestBody represents the request body for resolving
// a request. An assigned doctor may be attached with or without a status
// change.
type UpdateAppointmentRequestBody struct {
	Status           string `json:"status" binding:"omitempty,oneof=aceptada aprobada rechazada"`
	RejectionReason  string `json:"rejectionReason"`
	AssignedDoctorID string `json:"assignedDoctorId" binding:"omitempty,uuid"`
}

// UpdateRequest resolves a pending request. A request that already
// reached a terminal status cannot be updated again.
func (h *AppointmentRequestHandler) UpdateRequest(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid request ID format")
		return
	}

	var req UpdateAppointmentRequestBody
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var request models.AppointmentRequest
	if err := h.DB.First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment request not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if request.Status.IsTerminal() {
		utils.BadRequest(c, "Appointment request already processed")
		return
	}

	if req.AssignedDoctorID != "" {
		var doctor models.User
		if err := h.DB.Where("id = ? AND role = ?", req.AssignedDoctorID, models.RoleDoctor).First(&doctor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.NotFound(c, "Assigned doctor not found or user is not a doctor")
			} else {
				utils.InternalServerError(c, "Database error verifying doctor: "+err.Error())
			}
			return
		}
		request.AssignedDoctorID = req.AssignedDoctorID
	}

	if req.Status != "" {
		status := normalizeRequestStatus(req.Status)
		request.Status = status
		if status == models.RequestRechazada {
			request.RejectionReason = req.RejectionReason
		}
	}

	if err := h.DB.Save(&request).Error; err != nil {
		utils.InternalServerError(c, "Failed to update appointment request: "+err.Error())
		return
	}

	if request.Status.IsTerminal() {
		h.notifyResolution(&request)
	}

	utils.Success(c, "Appointment request updated successfully", request)
}

func (h *AppointmentRequestHandler) notifyResolution(request *models.AppointmentRequest) {
	body := "Your appointment request was accepted. The clinic will book your appointment shortly."
	if request.Status == models.RequestRechazada {
		body = "Your appointment request was rejected."
		if request.RejectionReason != "" {
			body += " Reason: " + request.RejectionReason
		}
	}
	row := models.Notification{
		UserID:  request.PatientID,
		Kind:    models.NotifyRequestResolved,
		Subject: "Appointment request " + string(request.Status),
		Body:    body,
	}
	if err := h.DB.Create(&row).Error; err != nil {
		h.Log.Error().Err(err).Str("request", request.ID).Msg("failed to write request resolution notification")
	}
}

// CancelRequest lets the owning patient withdraw a request that is still
// pending. Cancellation is a soft delete.
func (h *AppointmentRequestHandler) CancelRequest(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid request ID format")
		return
	}

	callerID, _ := middleware.GetUserIDFromContext(c)
	callerRole, _ := middleware.GetUserRoleFromContext(c)

	var request models.AppointmentRequest
	if err := h.DB.First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment request not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if callerRole == models.RolePatient && request.PatientID != callerID {
		utils.Forbidden(c, "You can only cancel your own appointment requests")
		return
	}

	if request.Status != models.RequestPendiente {
		utils.BadRequest(c, "Only pending appointment requests can be cancelled")
		return
	}

	if err := h.DB.Delete(&request).Error; err != nil {
		utils.InternalServerError(c, "Failed to cancel appointment request: "+err.Error())
		return
	}

	utils.Success(c, "Appointment request cancelled", gin.H{"id": request.ID})
}

// normalizeRequestStatus maps the legacy spelling "aprobada" onto
// aceptada so both are accepted on input.
func normalizeRequestStatus(s string) models.RequestStatus {
	if s == "aprobada" {
		return models.RequestAceptada
	}
	return models.RequestStatus(s)
}
