package services

import (
	"github.com/google/uuid"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

// ScopeAuthorizer decides owner access from the scope carried on the actor.
//
//	admin, system, emitter   any owner
//	clinic_manager           clinic owners with their clinic id; CompanyIDs,
//	                         when non-empty, must include the owner's company
//	entity_manager           entity owners with their entity id
//	employee                 never (employees act on their own assessment only)
type ScopeAuthorizer struct{}

var _ domainagg.Authorizer = ScopeAuthorizer{}

func NewScopeAuthorizer() ScopeAuthorizer { return ScopeAuthorizer{} }

func (ScopeAuthorizer) Authorize(actor audit.ActorContext, owner batches.Owner) bool {
	if actor.Validate() != nil || owner.Validate() != nil {
		return false
	}
	switch actor.Role {
	case audit.RoleAdmin, audit.RoleSystem, audit.RoleEmitter:
		return true
	case audit.RoleClinicManager:
		if owner.Kind != batches.OwnerClinic || actor.ClinicID == uuid.Nil || actor.ClinicID != owner.ClinicID {
			return false
		}
		if len(actor.CompanyIDs) == 0 {
			return true
		}
		for _, id := range actor.CompanyIDs {
			if id == owner.CompanyID {
				return true
			}
		}
		return false
	case audit.RoleEntityManager:
		return owner.Kind == batches.OwnerEntity && actor.EntityID != uuid.Nil && actor.EntityID == owner.EntityID
	default:
		return false
	}
}
