package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Health reports whether the service can serve requests.
type Health struct {
	// Check is optional, a nil Check always reports ok.
	Check func(context.Context) error
}

func (h *Health) RegisterAPI(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/health", h.handle, opErrors(http.StatusServiceUnavailable))
}

// HealthOutput represents the health operation response.
type HealthOutput struct {
	Body struct {
		Status string `json:"status" example:"ok" doc:"Health status"`
	}
}

func (h *Health) handle(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	if h.Check != nil {
		if err := h.Check(ctx); err != nil {
			return nil, huma.Error503ServiceUnavailable("unhealthy", err)
		}
	}
	resp := &HealthOutput{}
	resp.Body.Status = "ok"
	return resp, nil
}
