package handlers

import (
	"errors"
	"time"

	"clinica-server/internal/middleware"
	"clinica-server/internal/models"
	"clinica-server/internal/notify"
	"clinica-server/internal/scheduling"
	"clinica-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	DB         *gorm.DB
	Booker     *scheduling.Booker
	Dispatcher *notify.Dispatcher
	Log        zerolog.Logger
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(db *gorm.DB, booker *scheduling.Booker, dispatcher *notify.Dispatcher, log zerolog.Logger) *AppointmentHandler {
	return &AppointmentHandler{DB: db, Booker: booker, Dispatcher: dispatcher, Log: log}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
type CreateAppointmentRequest struct {
	PatientID string    `json:"patientId" binding:"omitempty,uuid"`
	DoctorID  string    `json:"doctorId" binding:"required,uuid"`
	Date      time.Time `json:"date" binding:"required"`
	Type      string    `json:"type" binding:"required,oneof=presencial virtual"`
	Status    string    `json:"status" binding:"omitempty,oneof=programada en_atencion finalizada cancelada reprogramada no_asistio"`
	Location  string    `json:"location" binding:"required_if=Type presencial"`
	Room      string    `json:"room" binding:"required_if=Type presencial"`
	Notes     string    `json:"notes"`
}

// CreateAppointment books a new appointment after checking for
// conflicting bookings. Patients book for themselves; doctors and
// admins must name the patient.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	callerID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User ID not found in token")
		return
	}
	callerRole, _ := middleware.GetUserRoleFromContext(c)

	// Patients never book on behalf of someone else; the patient ID is
	// always the authenticated caller's.
	patientID := req.PatientID
	if callerRole == models.RolePatient {
		if patientID != "" && patientID != callerID {
			utils.Forbidden(c, "Patients can only book appointments for themselves.")
			return
		}
		patientID = callerID
	} else if patientID == "" {
		utils.BadRequest(c, "patientId is required")
		return
	}

	// Verify doctor exists and is a doctor
	var doctor models.User
	if err := h.DB.Where("id = ? AND role = ?", req.DoctorID, models.RoleDoctor).First(&doctor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found or user is not a doctor")
		} else {
			utils.InternalServerError(c, "Database error verifying doctor: "+err.Error())
		}
		return
	}
	// Verify patient exists
	var patient models.User
	if err := h.DB.Where("id = ? AND role = ?", patientID, models.RolePatient).First(&patient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.InternalServerError(c, "Database error verifying patient: "+err.Error())
		}
		return
	}

	appt, err := h.Booker.Book(c.Request.Context(), scheduling.BookingParams{
		PatientID: patientID,
		DoctorID:  req.DoctorID,
		Date:      req.Date,
		Type:      models.AppointmentType(req.Type),
		Status:    models.AppointmentStatus(req.Status),
		Notes:     req.Notes,
		Location:  req.Location,
		Room:      req.Room,
	})
	switch {
	case err == nil:
	case errors.Is(err, scheduling.ErrSlotTaken), errors.Is(err, scheduling.ErrPriorPending):
		utils.Conflict(c, err.Error())
		return
	case errors.Is(err, scheduling.ErrMissingLocation):
		utils.BadRequest(c, err.Error())
		return
	default:
		utils.InternalServerError(c, "Failed to create appointment: "+err.Error())
		return
	}

	// Notification is best-effort: a failure here never undoes the
	// booking.
	h.notifyBooking(&patient, &doctor, appt)

	utils.Created(c, "Appointment created successfully", appt)
}

func (h *AppointmentHandler) notifyBooking(patient, doctor *models.User, appt *models.Appointment) {
	when := appt.Date.Format("02/01/2006 15:04")
	rows := []models.Notification{
		{
			UserID:  patient.ID,
			Kind:    models.NotifyAppointmentBooked,
			Subject: "Appointment confirmed",
			Body:    "Your appointment with Dr. " + doctor.FullName() + " is scheduled for " + when + ".",
		},
		{
			UserID:  doctor.ID,
			Kind:    models.NotifyAppointmentBooked,
			Subject: "New appointment booked",
			Body:    "A new appointment with patient " + patient.FullName() + " is scheduled for " + when + ".",
		},
	}
	if err := h.DB.Create(&rows).Error; err != nil {
		h.Log.Error().Err(err).Str("appointment", appt.ID).Msg("failed to write in-app notifications")
	}
	if h.Dispatcher != nil {
		h.Dispatcher.EnqueueAll(notify.AppointmentEmails(patient, doctor, appt))
	}
}

// notifyUpdate records a reschedule or status change in the patient's
// notification feed. Best-effort, like notifyBooking.
func (h *AppointmentHandler) notifyUpdate(appt *models.Appointment) {
	when := appt.Date.Format("02/01/2006 15:04")
	row := models.Notification{
		UserID:  appt.PatientID,
		Kind:    models.NotifyAppointmentUpdated,
		Subject: "Appointment " + string(appt.Status),
		Body:    "Your appointment on " + when + " is now " + string(appt.Status) + ".",
	}
	if err := h.DB.Create(&row).Error; err != nil {
		h.Log.Error().Err(err).Str("appointment", appt.ID).Msg("failed to write appointment update notification")
	}
}

// GetAppointments lists appointments for the caller. Patients see their
// own, doctors theirs, admins everything; admins and doctors may filter
// by patientId/doctorId. Cancelled appointments only show up when asked
// for explicitly via ?status=.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	callerID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	callerRole, _ := middleware.GetUserRoleFromContext(c)

	query := h.DB.Preload("Patient").Preload("Doctor").Order("date asc")

	statusFilter := c.Query("status")
	if statusFilter != "" {
		if !scheduling.ValidStatus(models.AppointmentStatus(statusFilter)) {
			utils.BadRequest(c, "Unknown status filter: "+statusFilter)
			return
		}
		query = query.Where("status = ?", statusFilter)
	} else {
		query = query.Where("status <> ?", models.StatusCancelada)
	}

	switch callerRole {
	case models.RolePatient:
		query = query.Where("patient_id = ?", callerID)
	case models.RoleDoctor:
		query = query.Where("doctor_id = ?", callerID)
		if patientID := c.Query("patientId"); patientID != "" {
			query = query.Where("patient_id = ?", patientID)
		}
	case models.RoleAdmin:
		if patientID := c.Query("patientId"); patientID != "" {
			query = query.Where("patient_id = ?", patientID)
		}
		if doctorID := c.Query("doctorId"); doctorID != "" {
			query = query.Where("doctor_id = ?", doctorID)
		}
	default:
		utils.Forbidden(c, "User role not permitted to view appointments")
		return
	}

	var appointments []models.Appointment
	if err := query.Find(&appointments).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}

	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetAppointmentByID handles fetching a single appointment by its ID.
// Accessible by involved patient, doctor, or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid Appointment ID format")
		return
	}

	var appointment models.Appointment
	if err := h.DB.Preload("Patient").Preload("Doctor").First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	callerID, _ := middleware.GetUserIDFromContext(c)
	callerRole, _ := middleware.GetUserRoleFromContext(c)

	isPatientInvolved := callerID == appointment.PatientID
	isDoctorInvolved := callerID == appointment.DoctorID

	if callerRole != models.RoleAdmin && !isPatientInvolved && !isDoctorInvolved {
		utils.Forbidden(c, "You are not authorized to view this appointment")
		return
	}

	utils.Success(c, "Appointment fetched successfully", appointment)
}

// UpdateAppointmentRequest represents the request body for updating an appointment.
// All fields are optional; a date change reschedules, a status change is
// checked against the lifecycle edges.
type UpdateAppointmentRequest struct {
	Status string     `json:"status" binding:"omitempty,oneof=programada en_atencion finalizada cancelada reprogramada no_asistio"`
	Date   *time.Time `json:"date"`
	Notes  string     `json:"notes"`
}

// UpdateAppointment handles partial updates: notes, reschedules and
// status transitions. Patients may only cancel their own appointments;
// doctors manage theirs, admins anything.
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid Appointment ID format")
		return
	}

	var req UpdateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var appointment models.Appointment
	if err := h.DB.First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	callerID, _ := middleware.GetUserIDFromContext(c)
	callerRole, _ := middleware.GetUserRoleFromContext(c)

	canUpdate := false
	switch callerRole {
	case models.RoleAdmin:
		canUpdate = true
	case models.RoleDoctor:
		canUpdate = callerID == appointment.DoctorID
	case models.RolePatient:
		if callerID != appointment.PatientID {
			break
		}
		// Patients can only cancel.
		if req.Status != "" && req.Status != string(models.StatusCancelada) {
			utils.Forbidden(c, "Patients can only cancel appointments.")
			return
		}
		canUpdate = req.Status != "" || req.Notes != ""
	}
	if !canUpdate {
		utils.Forbidden(c, "You are not authorized to update this appointment.")
		return
	}

	// A new date moves the appointment into reprogramada; the new slot
	// is conflict-checked like a fresh booking.
	if req.Date != nil {
		switch err := h.Booker.Reschedule(c.Request.Context(), &appointment, *req.Date); {
		case err == nil:
		case errors.Is(err, scheduling.ErrInvalidTransition):
			utils.BadRequest(c, "Appointment cannot be rescheduled from status "+string(appointment.Status))
			return
		case errors.Is(err, scheduling.ErrSlotTaken), errors.Is(err, scheduling.ErrPriorPending):
			utils.Conflict(c, err.Error())
			return
		default:
			utils.InternalServerError(c, "Failed to reschedule appointment: "+err.Error())
			return
		}
	}

	if req.Status != "" {
		to := models.AppointmentStatus(req.Status)
		switch err := h.Booker.Transition(c.Request.Context(), &appointment, to); {
		case err == nil:
		case errors.Is(err, scheduling.ErrInvalidTransition):
			utils.BadRequest(c, "Status transition not allowed: "+string(appointment.Status)+" -> "+req.Status)
			return
		case errors.Is(err, scheduling.ErrSlotTaken), errors.Is(err, scheduling.ErrPriorPending):
			utils.Conflict(c, err.Error())
			return
		default:
			utils.InternalServerError(c, "Failed to update appointment status: "+err.Error())
			return
		}
	}

	if req.Notes != "" {
		appointment.Notes = req.Notes
		if err := h.DB.Save(&appointment).Error; err != nil {
			utils.InternalServerError(c, "Failed to update appointment: "+err.Error())
			return
		}
	}

	if req.Date != nil || req.Status != "" {
		h.notifyUpdate(&appointment)
	}

	utils.Success(c, "Appointment updated successfully", appointment)
}

// DeleteAppointment soft-deletes an appointment by cancelling it. The
// row stays in place with status cancelada and drops out of default
// listings.
func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid Appointment ID format")
		return
	}

	var appointment models.Appointment
	if err := h.DB.First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	callerID, _ := middleware.GetUserIDFromContext(c)
	callerRole, _ := middleware.GetUserRoleFromContext(c)

	isInvolved := callerID == appointment.PatientID || callerID == appointment.DoctorID
	if callerRole != models.RoleAdmin && !isInvolved {
		utils.Forbidden(c, "You are not authorized to cancel this appointment")
		return
	}

	if err := h.Booker.Transition(c.Request.Context(), &appointment, models.StatusCancelada); err != nil {
		if errors.Is(err, scheduling.ErrInvalidTransition) {
			utils.BadRequest(c, "Appointment cannot be cancelled from status "+string(appointment.Status))
			return
		}
		utils.InternalServerError(c, "Failed to cancel appointment: "+err.Error())
		return
	}

	h.notifyUpdate(&appointment)

	utils.Success(c, "Appointment cancelled", gin.H{"id": appointment.ID, "status": appointment.Status})
}

// FinishAllRequest represents the request body for the bulk finish operation.
type FinishAllRequest struct {
	PatientID string `json:"patientId" binding:"required,uuid"`
}

// FinishAllByPatient closes out every active appointment of a patient in
// one batched update.
func (h *AppointmentHandler) FinishAllByPatient(c *gin.Context) {
	var req FinishAllRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	updated, err := h.Booker.FinishAllByPatient(c.Request.Context(), req.PatientID)
	if err != nil {
		utils.InternalServerError(c, "Failed to finish appointments: "+err.Error())
		return
	}

	utils.Success(c, "Active appointments finished", gin.H{"updated": updated})
}
