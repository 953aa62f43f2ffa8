package httpapi

import (
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/gurre/nats3/metadata"
	"github.com/gurre/nats3/types"
)

func limitFromQuery(r *http.Request) *int64 {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return newAppError(http.StatusBadRequest, "malformed request body: "+err.Error())
	}
	return nil
}

// --- store jobs ---

func (s *Server) handleListStoreJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListStoreJobs(r.Context(), metadata.StoreJobFilter{Limit: limitFromQuery(r)})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetStoreJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := s.store.GetStoreJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCreateStoreJob(w http.ResponseWriter, r *http.Request) {
	var create types.CreateStoreJob
	if err := decodeBody(r, &create); err != nil {
		writeError(w, err)
		return
	}
	job, err := s.coordinator.StartNewStoreJob(r.Context(), create)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteStoreJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.coordinator.DeleteStoreJob(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePauseStoreJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := s.coordinator.PauseStoreJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleResumeStoreJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := s.coordinator.ResumeStoreJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// --- load jobs ---

func (s *Server) handleListLoadJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListLoadJobs(r.Context(), metadata.LoadJobFilter{Limit: limitFromQuery(r)})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetLoadJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := s.store.GetLoadJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCreateLoadJob(w http.ResponseWriter, r *http.Request) {
	var create types.CreateLoadJob
	if err := decodeBody(r, &create); err != nil {
		writeError(w, err)
		return
	}
	job, err := s.coordinator.StartNewLoadJob(r.Context(), create)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteLoadJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.coordinator.DeleteLoadJob(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePauseLoadJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := s.coordinator.PauseLoadJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleResumeLoadJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := s.coordinator.ResumeLoadJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
