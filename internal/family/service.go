package family

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/marianoklecha/turnos-core/internal/backend"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

// Service wraps the family-member endpoints of the backend API.
type Service struct {
	api    *backend.Client
	logger *logging.Logger
}

// NewService constructs a family service adapter.
func NewService(api *backend.Client, logger *logging.Logger) *Service {
	if api == nil {
		panic("family: backend client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{api: api, logger: logger.Named("family.service")}
}

// CreateMember registers a new dependent under the holder in req.
func (s *Service) CreateMember(ctx context.Context, req CreateRequest, accessToken string) (*Member, error) {
	var out Member
	if err := s.api.DoJSON(ctx, http.MethodPost, "/family-members", accessToken, req, &out); err != nil {
		return nil, fmt.Errorf("create family member: %w", err)
	}
	return &out, nil
}

// UpdateMember writes the edited fields back to an existing record.
func (s *Service) UpdateMember(ctx context.Context, id string, req CreateRequest, accessToken string) (*Member, error) {
	path := "/family-members/" + url.PathEscape(id)
	var out Member
	if err := s.api.DoJSON(ctx, http.MethodPut, path, accessToken, req, &out); err != nil {
		return nil, fmt.Errorf("update family member: %w", err)
	}
	return &out, nil
}

// MyFamily lists the caller's registered dependents.
func (s *Service) MyFamily(ctx context.Context, accessToken string) ([]Member, error) {
	var out []Member
	if err := s.api.DoJSON(ctx, http.MethodGet, "/family-members/mine", accessToken, nil, &out); err != nil {
		return nil, fmt.Errorf("get my family: %w", err)
	}
	return out, nil
}
