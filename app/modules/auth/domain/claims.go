package authdomain

import "time"

// Role is what a token holder may do.
type Role string

const (
	// RoleInstructor may finalize the contest and read archived snapshots.
	RoleInstructor Role = "instructor"
	// RoleViewer may read results only.
	RoleViewer Role = "viewer"
)

// Claims are the validated contents of a token.
type Claims struct {
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// CanFinalize reports whether the holder may trigger a finalize.
func (c *Claims) CanFinalize() bool {
	return c != nil && c.Role == RoleInstructor
}
