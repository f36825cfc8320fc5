package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/memmux/internal/remux"
)

// FormatsHandler lists supported formats and codecs.
type FormatsHandler struct {
	converter *remux.Converter
}

// NewFormatsHandler creates a formats handler.
func NewFormatsHandler(converter *remux.Converter) *FormatsHandler {
	return &FormatsHandler{converter: converter}
}

// FormatsInput is the input for listing formats.
type FormatsInput struct{}

// FormatsOutput is the catalog of formats and codecs.
type FormatsOutput struct {
	Body remux.Catalog
}

// Register registers the formats route with the API.
func (h *FormatsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listFormats",
		Method:      http.MethodGet,
		Path:        "/api/v1/formats",
		Summary:     "List formats",
		Description: "Lists the container formats and codecs the server can read and write",
		Tags:        []string{"Convert"},
	}, h.List)
}

// List returns the catalog.
func (h *FormatsHandler) List(_ context.Context, _ *FormatsInput) (*FormatsOutput, error) {
	return &FormatsOutput{Body: h.converter.Catalog()}, nil
}
