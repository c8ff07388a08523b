package model

import "time"

// UserRole is the account tier.
type UserRole string

const (
	UserRoleFree  UserRole = "free"
	UserRolePro   UserRole = "pro"
	UserRoleAdmin UserRole = "admin"
)

// User is a registered account or a guest identity bound to one session marker.
type User struct {
	ID                  string    `json:"id"                            db:"id"`
	Email               *string   `json:"email,omitempty"               db:"email"`
	Subject             *string   `json:"subject,omitempty"             db:"subject"`
	DisplayName         string    `json:"display_name"                  db:"display_name"`
	Role                UserRole  `json:"role"                          db:"role"`
	IsGuest             bool      `json:"is_guest"                      db:"is_guest"`
	GuestSession        *string   `json:"-"                             db:"guest_session"`
	EncryptedScoringKey *string   `json:"-"                             db:"encrypted_scoring_key"`
	YearsOfExperience   *int      `json:"years_of_experience,omitempty" db:"years_of_experience"`
	PreferredSkills     []string  `json:"preferred_skills,omitempty"    db:"preferred_skills"`
	CreatedAt           time.Time `json:"created_at"                    db:"created_at"`
}

// Owner returns the pipeline owner for this user.
func (u *User) Owner() Owner {
	if u.IsGuest {
		return GuestOwner(u.ID)
	}
	return RegisteredOwner(u.ID)
}

// UpsertUserRequest describes a registered identity seen at login.
type UpsertUserRequest struct {
	Subject     string
	Email       string
	DisplayName string
	Role        UserRole
}
