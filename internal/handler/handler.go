package handler

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	appI18n "github.com/pavelanni/coursecms/internal/i18n"
	"github.com/pavelanni/coursecms/internal/model"
	"github.com/pavelanni/coursecms/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	validate *validator.Validate
	config   model.ServerConfig
}

// New creates a new Handler.
func New(s *store.Store, cfg model.ServerConfig) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{store: s, validate: v, config: cfg}
}

// Router returns the API mounted under the configured base path. Requests are
// localized from Accept-Language, falling back to the configured default
// language. The given middlewares run first.
func (h *Handler) Router(middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewares...)
	r.Use(appI18n.Middleware(h.config.DefaultLang))
	if h.config.BasePath != "" {
		r.Route(h.config.BasePath, h.Routes)
	} else {
		h.Routes(r)
	}
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	if h.config.MaxBodySize > 0 {
		r.Use(h.limitBody)
	}

	r.Route("/courses", func(r chi.Router) {
		r.Get("/", h.handleListCourses)
		r.Post("/", h.handleCreateCourse)
		r.Route("/{courseID}", func(r chi.Router) {
			r.Get("/", h.handleGetCourse)
			r.Get("/chapters", h.handleListChapters)
			r.Post("/chapters", h.handleCreateChapter)
			r.Get("/pages", h.handleListPages)
		})
	})

	r.Post("/pages", h.handleCreatePage)
	r.Route("/pages/{pageID}", func(r chi.Router) {
		r.Get("/", h.handleGetPage)
		r.Put("/", h.handleUpdatePage)
		r.Delete("/", h.handleDeletePage)
	})

	r.Route("/editor/pages/{pageID}", func(r chi.Router) {
		r.Get("/", h.handleGetEditorPage)
		r.Put("/", h.handleSaveEditorPage)
	})
}
