package models

// Role tags a participant for addressing and counterpart resolution. Full
// profiles live with the participant directory, not here.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleShop     Role = "shop"
	RoleCustomer Role = "customer"
	RoleDelivery Role = "delivery"
)

// ValidRole reports whether r is one of the known role tags.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleShop, RoleCustomer, RoleDelivery:
		return true
	}
	return false
}

// Participant is an opaque identity reference plus its role tag.
type Participant struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}
