package companies

import "time"

// Company represents a tenant. MaxModules caps how many modules may be
// enabled at once; nil means unlimited.
type Company struct {
	ID         int64     `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	MaxModules *int32    `json:"max_modules,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
