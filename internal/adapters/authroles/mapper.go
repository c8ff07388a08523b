// Package authroles maps authenticated identities to application roles.
package authroles

import (
	"strings"

	domainauth "github.com/target/jobmatch/internal/domain/auth"
)

// Mapper grants admin to listed emails or members of AdminGroup.
// Every other authenticated identity is a regular user.
type Mapper struct {
	AdminEmails []string
	AdminGroup  string
}

func (m Mapper) Map(id domainauth.Identity) domainauth.Role {
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email != "" {
		for _, e := range m.AdminEmails {
			if strings.ToLower(strings.TrimSpace(e)) == email {
				return domainauth.RoleAdmin
			}
		}
	}
	if m.AdminGroup != "" {
		for _, g := range id.Groups {
			if g == m.AdminGroup {
				return domainauth.RoleAdmin
			}
		}
	}
	return domainauth.RoleUser
}
