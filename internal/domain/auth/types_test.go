package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRole_Meets(t *testing.T) {
	tests := []struct {
		name     string
		have     Role
		required Role
		want     bool
	}{
		{"admin meets admin", RoleAdmin, RoleAdmin, true},
		{"admin meets clinician", RoleAdmin, RoleClinician, true},
		{"clinician meets clinician", RoleClinician, RoleClinician, true},
		{"clinician does not meet admin", RoleClinician, RoleAdmin, false},
		{"guest does not meet clinician", RoleGuest, RoleClinician, false},
		{"guest meets guest", RoleGuest, RoleGuest, true},
		{"unknown role meets nothing", Role("superuser"), RoleGuest, false},
		{"nothing meets unknown role", RoleAdmin, Role("superuser"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.have.Meets(tt.required))
		})
	}
}

func TestSession_IsGuest(t *testing.T) {
	assert.True(t, Session{Role: RoleGuest}.IsGuest())
	assert.False(t, Session{Role: RoleClinician}.IsGuest())
}

func TestSession_CanSubmit(t *testing.T) {
	assert.True(t, Session{Role: RoleClinician}.CanSubmit())
	assert.True(t, Session{Role: RoleAdmin}.CanSubmit())
	assert.False(t, Session{Role: RoleGuest}.CanSubmit())
}
