package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/subwatch/subwatch/internal/domain/ai"
)

type Service struct {
	client ai.Client
}

func NewService(client ai.Client) *Service {
	return &Service{client: client}
}

// Enhance looks up pricing plans and a category for a service name.
func (s *Service) Enhance(ctx context.Context, serviceName string) (*ai.Enhancement, error) {
	if strings.TrimSpace(serviceName) == "" {
		return nil, fmt.Errorf("service name is required")
	}
	return s.client.EnhanceSubscription(ctx, serviceName)
}
