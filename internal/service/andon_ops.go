package service

import (
	"context"

	"floordash"
	"floordash/internal/andon"
)

// AndonService adapts the registry's state machines to the API layer.
// Conflict and not-found errors pass through as andon.ErrConflict /
// andon.ErrNotFound for the handlers to map onto status codes.
type AndonService struct {
	registry *andon.Registry
}

func NewAndonService(registry *andon.Registry) *AndonService {
	return &AndonService{registry: registry}
}

func (s *AndonService) Acknowledge(_ context.Context, eventID, actor string) (floordash.AndonEvent, error) {
	return s.registry.Acknowledge(eventID, actor)
}

func (s *AndonService) Resolve(_ context.Context, eventID, actor string) (floordash.AndonEvent, error) {
	return s.registry.Resolve(eventID, actor)
}

func (s *AndonService) Active(_ context.Context, lineID string) []floordash.AndonEvent {
	return s.registry.Active(lineID)
}

func (s *AndonService) Get(_ context.Context, eventID string) (floordash.AndonEvent, error) {
	return s.registry.Get(eventID)
}
