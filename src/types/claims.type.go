package types

import "github.com/golang-jwt/jwt/v4"

type Role string

const (
	ROLE_ADMIN    Role = "admin"
	ROLE_STAFF    Role = "staff"
	ROLE_CUSTOMER Role = "customer"
)

// Claims is issued by the identity service. Subject carries the actor id.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
