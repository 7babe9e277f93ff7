package model

// Principal is an authenticated caller: the username accounts are owned by,
// plus the role assigned to the credential.
type Principal struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Known roles of the challenge users. Authorization is ownership-based; the
// role travels on the principal for logging and future endpoint policies.
const (
	RoleAccountOwner  = "ACCOUNT-OWNER"
	RoleSomethingElse = "SOMETHING-ELSE"
)
