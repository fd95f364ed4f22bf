package api

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"recordstore/service/pkg/store"
	"recordstore/service/pkg/tasks"
	"recordstore/service/pkg/telemetry/logging"
	"recordstore/service/pkg/telemetry/tracing"
)

// Config holds the dependencies of the route handlers.
type Config struct {
	Store  store.Store
	Tasks  tasks.Submitter
	Tracer *tracing.Tracer
	Logger *logging.Logger
}

// Handler serves the record store routes.
type Handler struct {
	store    store.Store
	tasks    tasks.Submitter
	tracer   *tracing.Tracer
	logger   *logging.Logger
	validate *validator.Validate
}

// New creates the route handlers.
func New(cfg Config) *Handler {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracing.Noop()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	return &Handler{
		store:    cfg.Store,
		tasks:    cfg.Tasks,
		tracer:   tracer,
		logger:   logger.With("component", "api"),
		validate: v,
	}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.root)
	mux.HandleFunc("GET /trace-test", h.traceTest)
	mux.HandleFunc("GET /error-test", h.errorTest)

	mux.HandleFunc("GET /products", h.listProducts)
	mux.HandleFunc("POST /products", h.createProduct)

	mux.HandleFunc("GET /orders", h.listOrders)
	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders/{order_id}", h.getOrder)
	mux.HandleFunc("POST /orders/{order_id}/process", h.processOrder)

	mux.HandleFunc("POST /checkout", h.checkout)
}

// jsonFieldName reports validation errors under the JSON field name.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
