package users

import "time"

// User represents an actor record managed by the identity subsystem.
// CompanyID is nil only for platform-wide users.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CompanyID *int64    `json:"company_id,omitempty"`
	RoleID    int64     `json:"role_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
