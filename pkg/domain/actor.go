package domain

import dErrors "swasthya/pkg/domain-errors"

// Role tags what kind of caller an Actor is. The auth collaborator resolves a
// credential to exactly one role once, at the boundary; the core never infers
// a role from which optional field happens to be present.
type Role string

const (
	// RoleUser covers patients, requesters and donors: ordinary accounts.
	RoleUser Role = "user"
	// RolePharmacist covers pharmacy staff resolving prescriptions.
	RolePharmacist Role = "pharmacist"
	// RoleAdmin covers back-office operators.
	RoleAdmin Role = "admin"
)

var validRoles = map[Role]bool{
	RoleUser:       true,
	RolePharmacist: true,
	RoleAdmin:      true,
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool { return validRoles[r] }

// Actor is the typed identity threaded through every core operation.
// Identity is the same opaque string (an email) used as Request.Requester,
// Donation.Donor and Prescription.PatientEmail, so notification routing and
// ownership checks compare exact values.
type Actor struct {
	Role     Role
	Identity string
	Name     string
}

// NewActor constructs an Actor, enforcing a known role and non-empty identity.
func NewActor(role Role, identity, name string) (Actor, error) {
	if !role.IsValid() {
		return Actor{}, dErrors.New(dErrors.CodeValidation, "unknown actor role")
	}
	if identity == "" {
		return Actor{}, dErrors.New(dErrors.CodeValidation, "actor identity cannot be empty")
	}
	return Actor{Role: role, Identity: identity, Name: name}, nil
}

func (a Actor) IsUser() bool       { return a.Role == RoleUser }
func (a Actor) IsPharmacist() bool { return a.Role == RolePharmacist }
func (a Actor) IsAdmin() bool      { return a.Role == RoleAdmin }
