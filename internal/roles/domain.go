package roles

import "time"

// Role represents a role for management. System roles are seeded at
// platform setup and their grants are immutable.
type Role struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	IsSystemRole bool      `json:"is_system_role"`
	IsSuperRole  bool      `json:"is_super_role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
