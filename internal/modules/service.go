package modules

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

var codePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// RepositoryPort defines data access methods for modules.
type RepositoryPort interface {
	List(ctx context.Context, includeInactive bool) ([]Module, error)
	GetByCode(ctx context.Context, code string) (Module, error)
	Create(ctx context.Context, code, name string) (Module, error)
	SetActive(ctx context.Context, id int64, active bool) (Module, error)
}

// Service handles module catalog business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns catalog modules in display order.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]Module, error) {
	return s.repo.List(ctx, includeInactive)
}

// GetByCode fetches a module by code.
func (s *Service) GetByCode(ctx context.Context, code string) (Module, error) {
	return s.repo.GetByCode(ctx, strings.ToLower(strings.TrimSpace(code)))
}

// Create registers a new catalog module.
func (s *Service) Create(ctx context.Context, code, name string) (Module, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if !codePattern.MatchString(code) {
		return Module{}, errors.New("modules: code must be lowercase alphanumeric")
	}
	if name == "" {
		return Module{}, errors.New("modules: name is required")
	}
	return s.repo.Create(ctx, code, name)
}

// SetActive flips the platform kill-switch. Disabling a module denies
// it everywhere immediately; historical permission rows stay in place.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (Module, error) {
	return s.repo.SetActive(ctx, id, active)
}
