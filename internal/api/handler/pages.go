package handler

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/cropsense/cropsense/internal/api/models"
	"github.com/cropsense/cropsense/internal/api/response"
	"github.com/cropsense/cropsense/internal/prediction"
	"github.com/cropsense/cropsense/internal/sensor"
)

//go:embed web/templates/*.html
var templateFS embed.FS

//go:embed web/static
var staticFS embed.FS

var pageTemplates = template.Must(template.New("").Funcs(template.FuncMap{
	"annualRain": prediction.AnnualRain,
}).ParseFS(templateFS, "web/templates/*.html"))

// indexData seeds the dashboard before its first poll of /get_data.
type indexData struct {
	State     sensor.State
	Languages []string
	Version   string
}

// PageHandler renders the HTML pages.
type PageHandler struct {
	state     StateReader
	languages []string
	version   string
	logger    zerolog.Logger
}

// NewPageHandler creates a new PageHandler. languages populates the crop
// information language picker.
func NewPageHandler(state StateReader, languages []string, version string, logger zerolog.Logger) *PageHandler {
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	return &PageHandler{
		state:     state,
		languages: languages,
		version:   version,
		logger:    logger,
	}
}

// Index handles GET / - the sensor dashboard.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "index.html", indexData{
		State:     h.state.Snapshot(),
		Languages: h.languages,
		Version:   h.version,
	})
}

// Fertilizer handles GET /fertilizer - static fertilizer advice.
func (h *PageHandler) Fertilizer(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "fertilizer.html", nil)
}

// Static serves the embedded scripts and stylesheets under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "web/static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error().Err(err).Str("template", name).Msg("rendering page failed")
		response.Problem(w, r, models.KindInternal, "could not render page")
		return
	}
	response.HTML(w, r, http.StatusOK, buf.Bytes())
}
