package audit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin         Role = "admin"
	RoleClinicManager Role = "clinic_manager"
	RoleEntityManager Role = "entity_manager"
	RoleEmitter       Role = "emitter"
	RoleEmployee      Role = "employee"
	RoleSystem        Role = "system"
)

func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleAdmin, RoleClinicManager, RoleEntityManager, RoleEmitter, RoleEmployee, RoleSystem:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

var ErrMissingActor = errors.New("actor context is required")

// RequestMeta is optional request-origin data copied into audit entries.
type RequestMeta struct {
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ActorContext identifies who performs a unit of work. It is passed by value
// through every call; nothing in the persistence layer stores it implicitly.
type ActorContext struct {
	ID   uuid.UUID
	Role Role

	// Scope the actor is allowed to act within. Zero values mean "none".
	ClinicID   uuid.UUID
	CompanyIDs []uuid.UUID
	EntityID   uuid.UUID

	Meta RequestMeta
}

func (a ActorContext) Validate() error {
	if a.ID == uuid.Nil || a.Role == "" {
		return ErrMissingActor
	}
	if _, err := ParseRole(string(a.Role)); err != nil {
		return err
	}
	return nil
}

func (a ActorContext) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// SystemActor is used by background workers.
func SystemActor(id uuid.UUID) ActorContext {
	return ActorContext{ID: id, Role: RoleSystem}
}
