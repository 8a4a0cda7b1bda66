package batches

import (
	"fmt"

	"github.com/google/uuid"
)

type OwnerKind string

const (
	OwnerClinic OwnerKind = "clinic"
	OwnerEntity OwnerKind = "entity"
)

// Owner is the single party a batch belongs to: a clinic acting for one of
// its client companies, or an entity managing its own staff.
type Owner struct {
	Kind      OwnerKind `json:"kind"`
	ClinicID  uuid.UUID `json:"clinic_id,omitempty"`
	CompanyID uuid.UUID `json:"company_id,omitempty"`
	EntityID  uuid.UUID `json:"entity_id,omitempty"`
}

func NewClinicOwner(clinicID, companyID uuid.UUID) (Owner, error) {
	if clinicID == uuid.Nil || companyID == uuid.Nil {
		return Owner{}, fmt.Errorf("clinic owner needs clinic and company: %w", ErrInvalidOwner)
	}
	return Owner{Kind: OwnerClinic, ClinicID: clinicID, CompanyID: companyID}, nil
}

func NewEntityOwner(entityID uuid.UUID) (Owner, error) {
	if entityID == uuid.Nil {
		return Owner{}, fmt.Errorf("entity owner needs entity id: %w", ErrInvalidOwner)
	}
	return Owner{Kind: OwnerEntity, EntityID: entityID}, nil
}

// OwnerFromColumns rebuilds an Owner from the nullable batch columns and
// rejects rows that carry both or neither reference.
func OwnerFromColumns(clinicID, companyID, entityID *uuid.UUID) (Owner, error) {
	hasClinic := clinicID != nil && *clinicID != uuid.Nil
	hasCompany := companyID != nil && *companyID != uuid.Nil
	hasEntity := entityID != nil && *entityID != uuid.Nil
	switch {
	case hasEntity && !hasClinic && !hasCompany:
		return NewEntityOwner(*entityID)
	case hasClinic && hasCompany && !hasEntity:
		return NewClinicOwner(*clinicID, *companyID)
	default:
		return Owner{}, ErrInvalidOwner
	}
}

func (o Owner) Validate() error {
	switch o.Kind {
	case OwnerClinic:
		if o.ClinicID == uuid.Nil || o.CompanyID == uuid.Nil || o.EntityID != uuid.Nil {
			return ErrInvalidOwner
		}
	case OwnerEntity:
		if o.EntityID == uuid.Nil || o.ClinicID != uuid.Nil || o.CompanyID != uuid.Nil {
			return ErrInvalidOwner
		}
	default:
		return ErrInvalidOwner
	}
	return nil
}

func (o Owner) columns() (clinicID, companyID, entityID *uuid.UUID) {
	switch o.Kind {
	case OwnerClinic:
		c, co := o.ClinicID, o.CompanyID
		return &c, &co, nil
	case OwnerEntity:
		e := o.EntityID
		return nil, nil, &e
	}
	return nil, nil, nil
}
