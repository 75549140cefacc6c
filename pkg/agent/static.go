package agent

import (
	"context"

	"github.com/aretw0/deprebuddy/pkg/ports"
)

// StaticGenerator answers every request with its deterministic fallback text.
// It backs the offline mode and keeps tests independent from the network.
type StaticGenerator struct{}

// Generate implements ports.Generator.
func (StaticGenerator) Generate(_ context.Context, req ports.GenerateRequest) (ports.GenerateResponse, error) {
	return ports.GenerateResponse{Text: req.Fallback}, nil
}
