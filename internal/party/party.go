package party

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleProvider Role = "provider"
	RoleClient   Role = "client"
	RoleAdmin    Role = "admin"
)

// Capability is an action the authorization layer checks before calling the
// booking engine.
type Capability string

const (
	CapBookOwnCalendar Capability = "book_own_calendar"
	CapBookAnyCalendar Capability = "book_any_calendar"
	CapCancelOwn       Capability = "cancel_own"
	CapCancelAny       Capability = "cancel_any"
	CapListOwn         Capability = "list_own"
	CapListAny         Capability = "list_any"
)

var capabilities = map[Role][]Capability{
	RoleProvider: {CapBookOwnCalendar, CapCancelOwn, CapListOwn},
	RoleClient:   {CapListOwn},
	RoleAdmin:    {CapBookAnyCalendar, CapCancelAny, CapListAny},
}

var (
	ErrNotFound           = errors.New("party not found")
	ErrRoleMismatch       = errors.New("party role does not permit this action")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidNationalID  = errors.New("national id must be exactly 11 digits")
	ErrLookupKeyRequired  = errors.New("login or national id is required to find a party")
	ErrLoginAlreadyExists = errors.New("login already taken")
)

// Party is a provider, client or administrator. NationalID and Role are
// optional; a party without a role can own appointments but cannot act.
type Party struct {
	ID         uuid.UUID
	Login      string
	Name       string
	Surname    string
	NationalID *string
	Role       *Role
	CreatedAt  time.Time
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := capabilities[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

func (p Party) HasRole(r Role) bool {
	return p.Role != nil && *p.Role == r
}

// Can reports ErrRoleMismatch when the party has no role or its role lacks c.
func (p Party) Can(c Capability) error {
	if p.Role == nil {
		return fmt.Errorf("%w: party %s has no role", ErrRoleMismatch, p.ID)
	}
	for _, have := range capabilities[*p.Role] {
		if have == c {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s cannot %s", ErrRoleMismatch, *p.Role, c)
}

func (p Party) DisplayName() string {
	return strings.TrimSpace(p.Name + " " + p.Surname)
}

func ValidateNationalID(s string) error {
	if len(s) != 11 {
		return ErrInvalidNationalID
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return ErrInvalidNationalID
		}
	}
	return nil
}
