package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"clinica-server/internal/middleware"
	"clinica-server/internal/models"
	"clinica-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MedicalRecordHandler handles medical record related requests.
type MedicalRecordHandler struct {
	DB *gorm.DB
}

// NewMedicalRecordHandler creates a new MedicalRecordHandler.
func NewMedicalRecordHandler(db *gorm.DB) *MedicalRecordHandler {
	return &MedicalRecordHandler{DB: db}
}

// CreateMedicalRecordRequest represents the request body for creating a medical record.
type CreateMedicalRecordRequest struct {
	PatientID  string                   `json:"patientId" binding:"required,uuid"`
	RecordType models.MedicalRecordType `json:"recordType" binding:"required"`
	RecordDate string                   `json:"recordDate" binding:"required"`
	Title      string                   `json:"title" binding:"required"`
	Department string                   `json:"department"`
	Summary    string                   `json:"summary" binding:"required"`
	Details    string                   `json:"details"`
}

// CreateMedicalRecord handles creating a new medical record.
// Only accessible by doctors.
func (h *MedicalRecordHandler) CreateMedicalRecord(c *gin.Context) {
	var req CreateMedicalRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "Doctor ID not found in token")
		return
	}

	// Verify patient exists
	var patient models.User
	if err := h.DB.Where("id = ? AND role = ?", req.PatientID, models.RolePatient).First(&patient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.InternalServerError(c, "Database error verifying patient: "+err.Error())
		}
		return
	}

	recordDate, err := time.Parse(time.RFC3339, req.RecordDate)
	if err != nil {
		utils.BadRequest(c, "Invalid date format. Please use ISO 8601 format (YYYY-MM-DDTHH:MM:SSZ)")
		return
	}

	record := models.MedicalRecord{
		PatientID:  req.PatientID,
		DoctorID:   doctorID,
		RecordType: req.RecordType,
		RecordDate: recordDate,
		Title:      req.Title,
		Department: req.Department,
		Summary:    req.Summary,
		Details:    req.Details,
	}

	if err := h.DB.Create(&record).Error; err != nil {
		utils.InternalServerError(c, "Failed to create medical record: "+err.Error())
		return
	}

	utils.Created(c, "Medical record created successfully", record)
}

// GetMedicalRecordsForPatient handles fetching all records of one patient.
// Patients see their own, doctors any patient's.
func (h *MedicalRecordHandler) GetMedicalRecordsForPatient(c *gin.Context) {
	patientIDStr := c.Param("patientId")
	if _, err := uuid.Parse(patientIDStr); err != nil {
		utils.BadRequest(c, "Invalid Patient ID format")
		return
	}

	callerID, _ := middleware.GetUserIDFromContext(c)
	callerRole, _ := middleware.GetUserRoleFromContext(c)

	isDoctor := callerRole == models.RoleDoctor || callerRole == models.RoleAdmin
	isSelf := callerID == patientIDStr
	if !isDoctor && !isSelf {
		utils.Forbidden(c, "You are not authorized to view these medical records")
		return
	}

	var records []models.MedicalRecord
	if err := h.DB.Preload("Attachments").Where("patient_id = ?", patientIDStr).Order("created_at desc").Find(&records).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch medical records: "+err.Error())
		return
	}

	utils.Success(c, "Medical records fetched successfully", records)
}

// GetMedicalRecordByID handles fetching a single medical record by its ID.
func (h *MedicalRecordHandler) GetMedicalRecordByID(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid Medical Record ID format")
		return
	}

	var record models.MedicalRecord
	if err := h.DB.Preload("Attachments").First(&record, "id = ?", recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Medical record not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	callerID, _ := middleware.GetUserIDFromContext(c)
	callerRole, _ := middleware.GetUserRoleFromContext(c)

	isDoctor := callerRole == models.RoleDoctor || callerRole == models.RoleAdmin
	isPatientOwner := callerRole == models.RolePatient && callerID == record.PatientID
	if !isDoctor && !isPatientOwner {
		utils.Forbidden(c, "You are not authorized to view this medical record")
		return
	}

	utils.Success(c, "Medical record fetched successfully", record)
}

// UpdateMedicalRecordRequest represents the request body for updating a medical record.
type UpdateMedicalRecordRequest struct {
	RecordType models.MedicalRecordType `json:"recordType,omitempty"`
	RecordDate string                   `json:"recordDate,omitempty"`
	Title      string                   `json:"title,omitempty"`
	Department string                   `json:"department,omitempty"`
	Summary    string                   `json:"summary,omitempty"`
	Details    string                   `json:"details,omitempty"`
}

// UpdateMedicalRecord handles updating an existing medical record.
// Only accessible by the doctor who created it or an admin.
func (h *MedicalRecordHandler) UpdateMedicalRecord(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid Medical Record ID format")
		return
	}

	var req UpdateMedicalRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	var record models.MedicalRecord
	if err := h.DB.First(&record, "id = ?", recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Medical record not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	callerID, _ := middleware.GetUserIDFromContext(c)
	callerRole, _ := middleware.GetUserRoleFromContext(c)

	isAdmin := callerRole == models.RoleAdmin
	isCreatorDoctor := callerRole == models.RoleDoctor && callerID == record.DoctorID
	if !isAdmin && !isCreatorDoctor {
		utils.Forbidden(c, "You are not authorized to update this medical record")
		return
	}

	if req.RecordType != "" {
		record.RecordType = req.RecordType
	}
	if req.RecordDate != "" {
		parsedDate, err := time.Parse(time.RFC3339, req.RecordDate)
		if err != nil {
			utils.BadRequest(c, "Invalid date format for recordDate. Please use ISO 8601 format (YYYY-MM-DDTHH:MM:SSZ)")
			return
		}
		record.RecordDate = parsedDate
	}
	if req.Title != "" {
		record.Title = req.Title
	}
	if req.Department != "" {
		record.Department = req.Department
	}
	if req.Summary != "" {
		record.Summary = req.Summary
	}
	if req.Details != "" {
		record.Details = req.Details
	}

	if err := h.DB.Save(&record).Error; err != nil {
		utils.InternalServerError(c, "Failed to update medical record: "+err.Error())
		return
	}

	utils.Success(c, "Medical record updated successfully", record)
}

// DeleteMedicalRecord handles deleting a medical record and its
// attachments. Only the creating doctor or an admin may delete.
func (h *MedicalRecordHandler) DeleteMedicalRecord(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid Medical Record ID format")
		return
	}

	var record models.MedicalRecord
	if err := h.DB.First(&record, "id = ?", recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Medical record not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	callerID, _ := middleware.GetUserIDFromContext(c)
	callerRole, _ := middleware.GetUserRoleFromContext(c)

	isAdmin := callerRole == models.RoleAdmin
	isCreatorDoctor := callerRole == models.RoleDoctor && callerID == record.DoctorID
	if !isAdmin && !isCreatorDoctor {
		utils.Forbidden(c, "You are not authorized to delete this medical record")
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.MedicalRecordAttachment{}, "medical_record_id = ?", record.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&record).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to delete medical record: "+err.Error())
		return
	}

	utils.Success(c, "Medical record deleted successfully", nil)
}

// UploadMedicalRecordAttachment handles uploading attachment files for a
// specific medical record. The file is stored as binary data.
// Only accessible by doctors.
func (h *MedicalRecordHandler) UploadMedicalRecordAttachment(c *gin.Context) {
	medicalRecordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid Medical Record ID format")
		return
	}

	// Verify the medical record exists
	var record models.MedicalRecord
	if err := h.DB.First(&record, "id = ?", medicalRecordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Medical record not found")
		} else {
			utils.InternalServerError(c, "Database error verifying medical record: "+err.Error())
		}
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequest(c, "Error retrieving file from form: "+err.Error())
		return
	}
	defer file.Close()

	fileData, err := io.ReadAll(file)
	if err != nil {
		utils.InternalServerError(c, "Error reading file content: "+err.Error())
		return
	}

	attachment := models.MedicalRecordAttachment{
		MedicalRecordID: medicalRecordID.String(),
		FileName:        header.Filename,
		FileType:        header.Header.Get("Content-Type"),
		FileData:        fileData,
	}

	if err := h.DB.Create(&attachment).Error; err != nil {
		utils.InternalServerError(c, "Failed to create medical record attachment entry: "+err.Error())
		return
	}

	// Return a slimmed down version of the attachment, without the FileData
	responseAttachment := struct {
		ID              string    `json:"id"`
		MedicalRecordID string    `json:"medicalRecordId"`
		FileName        string    `json:"fileName"`
		FileType        string    `json:"fileType"`
		CreatedAt       time.Time `json:"createdAt"`
	}{
		ID:              attachment.ID,
		MedicalRecordID: attachment.MedicalRecordID,
		FileName:        attachment.FileName,
		FileType:        attachment.FileType,
		CreatedAt:       attachment.CreatedAt,
	}

	utils.Success(c, "File uploaded and linked to medical record successfully", responseAttachment)
}

// GetMedicalRecordAttachment handles retrieving a specific attachment by
// its ID and serving its file data.
func (h *MedicalRecordHandler) GetMedicalRecordAttachment(c *gin.Context) {
	attachmentID, err := uuid.Parse(c.Param("attachmentId"))
	if err != nil {
		utils.BadRequest(c, "Invalid Attachment ID format")
		return
	}

	var attachment models.MedicalRecordAttachment
	if err := h.DB.First(&attachment, "id = ?", attachmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Attachment not found")
		} else {
			utils.InternalServerError(c, "Database error fetching attachment: "+err.Error())
		}
		return
	}

	// Authorization follows the parent medical record.
	var record models.MedicalRecord
	if err := h.DB.First(&record, "id = ?", attachment.MedicalRecordID).Error; err != nil {
		utils.InternalServerError(c, "Could not fetch parent medical record for authorization check.")
		return
	}

	callerID, _ := middleware.GetUserIDFromContext(c)
	callerRole, _ := middleware.GetUserRoleFromContext(c)

	isDoctor := callerRole == models.RoleDoctor || callerRole == models.RoleAdmin
	isPatientOwner := callerRole == models.RolePatient && callerID == record.PatientID
	if !isDoctor && !isPatientOwner {
		utils.Forbidden(c, "You are not authorized to view this attachment.")
		return
	}

	c.Writer.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	c.Data(http.StatusOK, attachment.FileType, attachment.FileData)
}
