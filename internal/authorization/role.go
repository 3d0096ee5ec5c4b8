package authorization

import (
	"errors"
	"strings"
)

type Role string

const (
	RoleClient    Role = "CLIENT"
	RoleDeliverer Role = "DELIVERER"
	RoleMerchant  Role = "MERCHANT"
	RoleProvider  Role = "PROVIDER"
	RoleAdmin     Role = "ADMIN"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", ErrInvalidActor
	}
	return role, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleDeliverer, RoleMerchant, RoleProvider, RoleAdmin:
		return true
	default:
		return false
	}
}

// Subject is the casbin subject the role's policies are stored under.
func (r Role) Subject() string {
	return "role:" + strings.ToLower(string(r))
}

// Actor is the authenticated caller as forwarded by the gateway.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
