package auth

import "time"

type Role string

const (
	RoleHirer    Role = "hirer"
	RoleAgent    Role = "agent"
	RoleOperator Role = "operator"
)

// APIKey is the domain representation of an issued API key. Only the bcrypt
// hash of the secret is stored; the full key material is returned once at
// issue time and never again.
type APIKey struct {
	ID         string
	OwnerName  string
	Wallet     string
	Role       Role
	SecretHash string
	CreatedAt  time.Time
}

// Identity is the authenticated caller the rest of the system works with:
// a wallet address plus a role. Nothing beyond address matching is validated
// downstream.
type Identity struct {
	Wallet string
	Role   Role
}

// IssueKeyRequest contains the data supplied when registering a new key.
type IssueKeyRequest struct {
	OwnerName string `json:"owner_name"`
	Wallet    string `json:"wallet"`
	Role      Role   `json:"role"`
}
