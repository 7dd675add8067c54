package public

import "github.com/bidua-hosting/backend/internal/provider"

// Handler serves the storefront and user-side API.
type Handler struct {
	*provider.Container
}

// New creates the public handler.
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
