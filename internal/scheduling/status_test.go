package scheduling

import (
	"testing"

	"clinica-server/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from models.AppointmentStatus
		to   models.AppointmentStatus
		want bool
	}{
		{"scheduled to in progress", models.StatusProgramada, models.StatusEnAtencion, true},
		{"scheduled to cancelled", models.StatusProgramada, models.StatusCancelada, true},
		{"scheduled to no-show", models.StatusProgramada, models.StatusNoAsistio, true},
		{"scheduled to rescheduled", models.StatusProgramada, models.StatusReprogramada, true},
		{"in progress to completed", models.StatusEnAtencion, models.StatusFinalizada, true},
		{"rescheduled back to scheduled", models.StatusReprogramada, models.StatusProgramada, true},

		{"scheduled straight to completed", models.StatusProgramada, models.StatusFinalizada, false},
		{"in progress to cancelled", models.StatusEnAtencion, models.StatusCancelada, false},
		{"completed to anything", models.StatusFinalizada, models.StatusProgramada, false},
		{"cancelled to scheduled", models.StatusCancelada, models.StatusProgramada, false},
		{"no-show to scheduled", models.StatusNoAsistio, models.StatusProgramada, false},
		{"same status repeated", models.StatusProgramada, models.StatusProgramada, false},
		{"unknown target", models.StatusProgramada, models.AppointmentStatus("archivada"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(models.StatusFinalizada))
	assert.True(t, IsTerminalStatus(models.StatusCancelada))
	assert.True(t, IsTerminalStatus(models.StatusNoAsistio))

	assert.False(t, IsTerminalStatus(models.StatusProgramada))
	assert.False(t, IsTerminalStatus(models.StatusEnAtencion))
	assert.False(t, IsTerminalStatus(models.StatusReprogramada))
}

func TestValidStatus(t *testing.T) {
	for _, s := range []models.AppointmentStatus{
		models.StatusProgramada, models.StatusEnAtencion, models.StatusFinalizada,
		models.StatusCancelada, models.StatusReprogramada, models.StatusNoAsistio,
	} {
		assert.True(t, ValidStatus(s), string(s))
	}
	assert.False(t, ValidStatus(models.AppointmentStatus("pending")))
	assert.False(t, ValidStatus(models.AppointmentStatus("")))
}
