package models

import (
	"time"
)

// NotificationKind classifies what triggered an in-app notification
type NotificationKind string

const (
	NotifyAppointmentBooked  NotificationKind = "appointment_booked"
	NotifyAppointmentUpdated NotificationKind = "appointment_updated"
	NotifyRequestResolved    NotificationKind = "request_resolved"
)

// Notification is an in-app notification shown in a user's feed. Rows
// are written as a side effect of bookings and request resolutions and
// never block the operation that produced them.
type Notification struct {
	BaseModel
	UserID  string           `gorm:"size:36;index" json:"userId"`
	Kind    NotificationKind `gorm:"size:40" json:"kind"`
	Subject string           `gorm:"size:255" json:"subject"`
	Body    string           `gorm:"type:text" json:"body"`
	ReadAt  *time.Time       `json:"readAt,omitempty"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// IsRead reports whether the user has seen the notification.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
