// Package httpapi implements the HTTP façade: the route table in full, JSON
// request/response bodies via goccy/go-json, and the Prometheus /metrics
// endpoint via promhttp. Grounded on gorilla/mux routing as used elsewhere
// in the corpus.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gurre/nats3/metadata"
	"github.com/gurre/nats3/types"
)

// AppError carries an HTTP status alongside a message, the ingress boundary's
// single error shape.
type AppError struct {
	Status  int
	Message string
}

func (e *AppError) Error() string { return e.Message }

// HTTPStatus returns the status code to respond with.
func (e *AppError) HTTPStatus() int { return e.Status }

func newAppError(status int, message string) *AppError {
	return &AppError{Status: status, Message: message}
}

// classify maps a domain error to its HTTP status, per §7's status mapping:
// NotFound->404, JobAlreadyRunning->409, everything else->500. Coordinator
// and store errors are wrapped with fmt.Errorf("...: %w", ...) on the way
// up, so the checks unwrap via errors.Is/errors.As rather than comparing
// identity directly.
func classify(err error) *AppError {
	if errors.Is(err, types.ErrNotFound) {
		return newAppError(http.StatusNotFound, err.Error())
	}
	var alreadyRunning *types.ErrJobAlreadyRunning
	if errors.As(err, &alreadyRunning) {
		return newAppError(http.StatusConflict, err.Error())
	}
	return newAppError(http.StatusInternalServerError, err.Error())
}

// Coordinator is the subset of coordinator.Coordinator the façade depends on.
type Coordinator interface {
	StartNewStoreJob(ctx context.Context, create types.CreateStoreJob) (types.StoreJob, error)
	PauseStoreJob(ctx context.Context, id string) (types.StoreJob, error)
	ResumeStoreJob(ctx context.Context, id string) (types.StoreJob, error)
	DeleteStoreJob(ctx context.Context, id string) error

	StartNewLoadJob(ctx context.Context, create types.CreateLoadJob) (types.LoadJob, error)
	PauseLoadJob(ctx context.Context, id string) (types.LoadJob, error)
	ResumeLoadJob(ctx context.Context, id string) (types.LoadJob, error)
	DeleteLoadJob(ctx context.Context, id string) error
}

// Server wires the route table from section 6 onto a gorilla/mux router.
type Server struct {
	coordinator Coordinator
	store       metadata.Store
	router      *mux.Router
}

// NewServer builds a Server and registers every route.
func NewServer(coordinator Coordinator, store metadata.Store) *Server {
	s := &Server{coordinator: coordinator, store: store, router: mux.NewRouter()}
	s.routes()
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/ping", handlePing).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", handleReady).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.router.HandleFunc("/load/jobs", s.handleListLoadJobs).Methods(http.MethodGet)
	s.router.HandleFunc("/load/job", s.handleGetLoadJob).Methods(http.MethodGet)
	s.router.HandleFunc("/load/job", s.handleCreateLoadJob).Methods(http.MethodPost)
	s.router.HandleFunc("/load/job", s.handleDeleteLoadJob).Methods(http.MethodDelete)
	s.router.HandleFunc("/load/job/pause", s.handlePauseLoadJob).Methods(http.MethodPost)
	s.router.HandleFunc("/load/job/resume", s.handleResumeLoadJob).Methods(http.MethodPost)

	s.router.HandleFunc("/store/jobs", s.handleListStoreJobs).Methods(http.MethodGet)
	s.router.HandleFunc("/store/job", s.handleGetStoreJob).Methods(http.MethodGet)
	s.router.HandleFunc("/store/job", s.handleCreateStoreJob).Methods(http.MethodPost)
	s.router.HandleFunc("/store/job", s.handleDeleteStoreJob).Methods(http.MethodDelete)
	s.router.HandleFunc("/store/job/pause", s.handlePauseStoreJob).Methods(http.MethodPost)
	s.router.HandleFunc("/store/job/resume", s.handleResumeStoreJob).Methods(http.MethodPost)
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("pong"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*AppError)
	if !ok {
		appErr = classify(err)
	}
	writeJSON(w, appErr.HTTPStatus(), map[string]string{"error": appErr.Error()})
}

func jobID(r *http.Request) (string, error) {
	id := r.URL.Query().Get("job_id")
	if id == "" {
		return "", newAppError(http.StatusBadRequest, "job_id is required")
	}
	return id, nil
}
