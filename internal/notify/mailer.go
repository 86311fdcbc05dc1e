package notify

import (
	"fmt"

	"clinica-server/internal/config"
	"clinica-server/internal/models"

	"gopkg.in/gomail.v2"
)

// Email is a single outbound message with plain-text and HTML bodies.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers a single email.
type Mailer interface {
	Send(e Email) error
}

// SMTPMailer delivers email over SMTP.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer creates a mailer from the application's SMTP settings.
func NewSMTPMailer(cfg config.MailerConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.DefaultFrom,
	}
}

// Send delivers the email, dialing a fresh SMTP connection per message.
func (m *SMTPMailer) Send(e Email) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", e.To)
	msg.SetHeader("Subject", e.Subject)
	msg.SetBody("text/plain", e.Text)
	if e.HTML != "" {
		msg.AddAlternative("text/html", e.HTML)
	}
	return m.dialer.DialAndSend(msg)
}

// AppointmentEmails composes the booking confirmation for both parties.
// The wording differs per role; virtual appointments carry the meeting
// link, presencial ones the location and room.
func AppointmentEmails(patient, doctor *models.User, appt *models.Appointment) []Email {
	when := appt.Date.Format("02/01/2006 15:04")

	var place, placeHTML string
	if appt.Type == models.TypeVirtual {
		place = fmt.Sprintf("Join through your meeting link: %s", appt.MeetingLink)
		placeHTML = fmt.Sprintf(`Join through your <a href="%s">meeting link</a>.`, appt.MeetingLink)
	} else {
		place = fmt.Sprintf("Location: %s, room %s.", appt.Location, appt.Room)
		placeHTML = fmt.Sprintf("Location: <b>%s</b>, room <b>%s</b>.", appt.Location, appt.Room)
	}

	patientText := fmt.Sprintf("Hello %s,\n\nYour appointment with Dr. %s is scheduled for %s.\n%s\n",
		patient.FullName(), doctor.FullName(), when, place)
	patientHTML := fmt.Sprintf("<p>Hello %s,</p><p>Your appointment with Dr. %s is scheduled for <b>%s</b>.</p><p>%s</p>",
		patient.FullName(), doctor.FullName(), when, placeHTML)

	doctorText := fmt.Sprintf("Hello Dr. %s,\n\nA new appointment with patient %s is scheduled for %s.\n%s\n",
		doctor.FullName(), patient.FullName(), when, place)
	doctorHTML := fmt.Sprintf("<p>Hello Dr. %s,</p><p>A new appointment with patient %s is scheduled for <b>%s</b>.</p><p>%s</p>",
		doctor.FullName(), patient.FullName(), when, placeHTML)

	return []Email{
		{To: patient.Email, Subject: "Appointment confirmed", Text: patientText, HTML: patientHTML},
		{To: doctor.Email, Subject: "New appointment booked", Text: doctorText, HTML: doctorHTML},
	}
}
