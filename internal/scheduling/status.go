package scheduling

import (
	"clinica-server/internal/models"
)

// transitions is the set of permitted status edges. Anything not listed
// here is rejected, including writes that repeat the current status.
// finalizada, cancelada and no_asistio have no outgoing edges.
var transitions = map[models.AppointmentStatus][]models.AppointmentStatus{
	models.StatusProgramada: {
		models.StatusEnAtencion,
		models.StatusCancelada,
		models.StatusNoAsistio,
		models.StatusReprogramada,
	},
	models.StatusEnAtencion: {
		models.StatusFinalizada,
	},
	// A rescheduled appointment goes back to programada once its new
	// slot is fixed.
	models.StatusReprogramada: {
		models.StatusProgramada,
	},
}

// CanTransition reports whether an appointment may move from one status
// to another.
func CanTransition(from, to models.AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no further transitions exist for the
// given appointment status.
func IsTerminalStatus(s models.AppointmentStatus) bool {
	return len(transitions[s]) == 0
}

// ValidStatus reports whether s is one of the known appointment statuses.
func ValidStatus(s models.AppointmentStatus) bool {
	switch s {
	case models.StatusProgramada, models.StatusEnAtencion, models.StatusFinalizada,
		models.StatusCancelada, models.StatusReprogramada, models.StatusNoAsistio:
		return true
	}
	return false
}
