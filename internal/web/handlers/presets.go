package handlers

import (
	"net/http"

	"github.com/kozaktomas/fusion-batch/internal/presets"
)

// PresetsHandler lists the step presets a batch can use
type PresetsHandler struct {
	catalog *presets.Catalog
}

// NewPresetsHandler creates a new presets handler
func NewPresetsHandler(catalog *presets.Catalog) *PresetsHandler {
	return &PresetsHandler{catalog: catalog}
}

// List returns every preset sorted by name
func (h *PresetsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog.List())
}
