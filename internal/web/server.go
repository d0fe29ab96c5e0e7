// Package web serves the single planning page.
//
// GET / renders an empty form. POST / reads the user_request form field,
// runs one planning workflow and shows the final state as indented JSON.
// Any other method on / is answered with 405 by the router.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/leofalp/planner/internal/agents"
	"github.com/leofalp/planner/internal/bridge"
	"github.com/leofalp/planner/providers/observability"
)

// RequestField is the form field holding the teacher's request.
const RequestField = "user_request"

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Planner runs one planning workflow.
type Planner interface {
	Plan(ctx context.Context, request string) (agents.SharedState, error)
}

// Server holds the handler dependencies.
type Server struct {
	planner     Planner
	observer    observability.Provider
	planTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithObserver reports request logs and metrics to observer. The observer is
// also placed in the planning context so the workflow reports to it.
func WithObserver(observer observability.Provider) Option {
	return func(server *Server) {
		server.observer = observer
	}
}

// WithPlanTimeout bounds one planning run. Zero means no bound beyond the
// request context.
func WithPlanTimeout(timeout time.Duration) Option {
	return func(server *Server) {
		server.planTimeout = timeout
	}
}

// page is the template data.
type page struct {
	Request string
	Result  string
	Error   string
}

// NewHandler returns the router serving the planning page.
func NewHandler(planner Planner, opts ...Option) http.Handler {
	server := &Server{planner: planner}
	for _, opt := range opts {
		opt(server)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(server.logRequests)
	router.Use(middleware.Recoverer)

	router.Get("/", server.ShowForm)
	router.Post("/", server.RunPlan)

	return router
}

// ShowForm handles GET /.
func (server *Server) ShowForm(w http.ResponseWriter, r *http.Request) {
	server.render(w, r, http.StatusOK, page{})
}

// RunPlan handles POST /.
func (server *Server) RunPlan(w http.ResponseWriter, r *http.Request) {
	request := r.PostFormValue(RequestField)
	if request == "" {
		server.render(w, r, http.StatusOK, page{})
		return
	}

	ctx := r.Context()
	runID := uuid.NewString()
	if server.observer != nil {
		ctx = observability.ContextWithObserver(ctx, server.observer)
		server.observer.Info(ctx, "Planning request received",
			observability.String(observability.AttrRunID, runID),
			observability.String(observability.AttrHTTPRequestID, middleware.GetReqID(ctx)),
			observability.Int("request.length", len(request)),
		)
	}
	if server.planTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, server.planTimeout)
		defer cancel()
	}

	result, err := bridge.RunSync(ctx, func(ctx context.Context) (string, error) {
		final, err := server.planner.Plan(ctx, request)
		if err != nil {
			return "", err
		}
		return agents.MarshalTransport(final)
	})
	if err != nil {
		if server.observer != nil {
			server.observer.Error(ctx, "Planning request failed",
				observability.String(observability.AttrRunID, runID),
				observability.Error(err),
			)
		}
		server.render(w, r, http.StatusInternalServerError, page{
			Request: request,
			Error:   fmt.Sprintf("Không thể lập kế hoạch (mã %s): %v", runID, err),
		})
		return
	}

	if server.observer != nil {
		server.observer.Debug(ctx, "Planning request completed",
			observability.String(observability.AttrRunID, runID),
			observability.String(observability.AttrResponseContent, observability.TruncateStringDefault(result)),
		)
	}
	server.render(w, r, http.StatusOK, page{Request: request, Result: result})
}

// render executes the page template into a buffer first, so a template
// failure still produces a clean 500.
func (server *Server) render(w http.ResponseWriter, r *http.Request, status int, data page) {
	var buffer bytes.Buffer
	if err := pageTemplate.Execute(&buffer, data); err != nil {
		if server.observer != nil {
			server.observer.Error(r.Context(), "Page rendering failed", observability.Error(err))
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buffer.Bytes())
}
