package rms

import "time"

// User is an authentication principal. Name is set when the user has an RM profile.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsSuperuser  bool
	Name         string
	CreatedAt    time.Time
}

// DisplayName prefers the RM profile name.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
