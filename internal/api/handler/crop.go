package handler

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/cropsense/cropsense/internal/api/response"
	"github.com/cropsense/cropsense/internal/crop"
)

// CropLookup resolves crop names to knowledge base records.
type CropLookup interface {
	Lookup(name string) crop.Info
}

// CropHandler handles crop knowledge base endpoints.
type CropHandler struct {
	kb CropLookup
}

// NewCropHandler creates a new CropHandler.
func NewCropHandler(kb CropLookup) *CropHandler {
	return &CropHandler{kb: kb}
}

// GetCropInfo handles GET /get_crop_info/{crop}. Unknown crops get the
// default record, never an error.
func (h *CropHandler) GetCropInfo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "crop")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	response.JSON(w, r, http.StatusOK, h.kb.Lookup(name))
}
