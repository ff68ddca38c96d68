package modules

import "time"

// Module is an installable capability unit. Code is the stable
// identifier used in resolution calls; IsActive is the platform
// kill-switch.
type Module struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	IsActive     bool      `json:"is_active"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
