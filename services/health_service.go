package services

import (
	"context"
	"time"

	"orchestrator-backend/models"
	"orchestrator-backend/storage/events"
)

// HealthService handles health check business logic
type HealthService struct {
	store  events.Store
	driver string
}

// NewHealthService creates a new health service
func NewHealthService(store events.Store, driver string) *HealthService {
	return &HealthService{store: store, driver: driver}
}

// GetHealthStatus returns current health status. The event store is probed
// with a one-record read.
func (s *HealthService) GetHealthStatus(ctx context.Context) *models.HealthResponse {
	resp := &models.HealthResponse{
		Status:    "healthy",
		Message:   "Orchestrator is running",
		Timestamp: time.Now().Unix(),
		Store:     s.driver,
	}
	if s.store == nil {
		return resp
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := s.store.List(ctx, events.Filter{Limit: 1}); err != nil {
		resp.Status = "degraded"
		resp.StoreError = err.Error()
	}
	return resp
}
