package companies

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RepositoryPort defines data access methods for companies.
type RepositoryPort interface {
	List(ctx context.Context) ([]Company, error)
	Get(ctx context.Context, id int64) (Company, error)
	Create(ctx context.Context, code, name string, maxModules *int32) (Company, error)
	SetQuota(ctx context.Context, id int64, maxModules *int32) (Company, error)
}

// Service handles company business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns all companies.
func (s *Service) List(ctx context.Context) ([]Company, error) {
	return s.repo.List(ctx)
}

// Get fetches a company by ID.
func (s *Service) Get(ctx context.Context, id int64) (Company, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a new company after validation.
func (s *Service) Create(ctx context.Context, code, name string, maxModules *int32) (Company, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" {
		return Company{}, errors.New("companies: code is required")
	}
	if name == "" {
		return Company{}, errors.New("companies: name is required")
	}
	if maxModules != nil && *maxModules < 0 {
		return Company{}, fmt.Errorf("companies: max modules must not be negative")
	}
	return s.repo.Create(ctx, code, name, maxModules)
}

// SetQuota updates the module quota. The quota only constrains future
// enables; already enabled modules are not revoked.
func (s *Service) SetQuota(ctx context.Context, id int64, maxModules *int32) (Company, error) {
	if maxModules != nil && *maxModules < 0 {
		return Company{}, fmt.Errorf("companies: max modules must not be negative")
	}
	return s.repo.SetQuota(ctx, id, maxModules)
}
