package domain

import (
	"errors"
	"strings"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// User is immutable after signup. Email doubles as the identifier;
// the password is stored as entered (see DESIGN.md).
type User struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

func NewUser(name, email, password string, role Role) (User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case name == "":
		return User{}, errors.New("name is required")
	case email == "" || !strings.Contains(email, "@"):
		return User{}, errors.New("a valid email is required")
	case password == "":
		return User{}, errors.New("password is required")
	case !role.Valid():
		return User{}, errors.New("role must be patient or doctor")
	}
	if role == RoleDoctor && !strings.HasPrefix(name, "Dr.") {
		name = "Dr. " + name
	}
	return User{Name: name, Email: email, Password: password, Role: role}, nil
}

// PeerID returns the identity used to address this user in the peer
// layer: the email lowercased and stripped to alphanumerics. Effectively
// 1:1 with email for realistic inputs.
func (u User) PeerID() PeerID {
	return PeerIDFromEmail(u.Email)
}
