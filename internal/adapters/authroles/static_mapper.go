package authroles

import (
	domainauth "github.com/LeHak0/Neuro-Triage/internal/domain/auth"
	"github.com/LeHak0/Neuro-Triage/internal/ports"
)

// StaticRoleMapper grants roles by exact group-name membership. An empty
// group name disables that role; anyone else signs in as a guest.
type StaticRoleMapper struct {
	AdminGroup     string
	ClinicianGroup string
}

func (m StaticRoleMapper) RoleFor(groups []string) domainauth.Role {
	for _, g := range groups {
		if m.AdminGroup != "" && g == m.AdminGroup {
			return domainauth.RoleAdmin
		}
	}
	for _, g := range groups {
		if m.ClinicianGroup != "" && g == m.ClinicianGroup {
			return domainauth.RoleClinician
		}
	}
	return domainauth.RoleGuest
}

var _ ports.RoleMapper = StaticRoleMapper{}
