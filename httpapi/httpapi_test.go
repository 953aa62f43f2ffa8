package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/gurre/nats3/metadata/memstore"
	"github.com/gurre/nats3/types"
)

// fakeCoordinator is a minimal Coordinator double for handler tests: it
// forwards store-job creation straight to the metadata store without
// spawning a real worker, and returns canned errors for the failure paths
// tests ask for.
type fakeCoordinator struct {
	store *memstore.Store

	failWithJobAlreadyRunning bool
}

func (f *fakeCoordinator) StartNewStoreJob(ctx context.Context, create types.CreateStoreJob) (types.StoreJob, error) {
	if f.failWithJobAlreadyRunning {
		return types.StoreJob{}, &types.ErrJobAlreadyRunning{ID: "dup"}
	}
	job := types.StoreJob{ID: "job-1", Status: types.StatusRunning, Name: create.Name, Stream: create.Stream, Subject: create.Subject, Bucket: create.Bucket}
	return f.store.CreateStoreJob(ctx, job)
}
func (f *fakeCoordinator) PauseStoreJob(ctx context.Context, id string) (types.StoreJob, error) {
	return f.store.UpdateStoreJobStatus(ctx, id, types.StatusPaused)
}
func (f *fakeCoordinator) ResumeStoreJob(ctx context.Context, id string) (types.StoreJob, error) {
	return f.store.UpdateStoreJobStatus(ctx, id, types.StatusRunning)
}
func (f *fakeCoordinator) DeleteStoreJob(ctx context.Context, id string) error {
	return f.store.DeleteStoreJob(ctx, id)
}

func (f *fakeCoordinator) StartNewLoadJob(ctx context.Context, create types.CreateLoadJob) (types.LoadJob, error) {
	job := types.LoadJob{ID: "load-1", Status: types.StatusRunning, Bucket: create.Bucket, ReadStream: create.ReadStream, ReadSubject: create.ReadSubject, WriteSubject: create.WriteSubject}
	return f.store.CreateLoadJob(ctx, job)
}
func (f *fakeCoordinator) PauseLoadJob(ctx context.Context, id string) (types.LoadJob, error) {
	return f.store.UpdateLoadJobStatus(ctx, id, types.StatusPaused)
}
func (f *fakeCoordinator) ResumeLoadJob(ctx context.Context, id string) (types.LoadJob, error) {
	return f.store.UpdateLoadJobStatus(ctx, id, types.StatusRunning)
}
func (f *fakeCoordinator) DeleteLoadJob(ctx context.Context, id string) error {
	return f.store.DeleteLoadJob(ctx, id)
}

func newTestServer() (*Server, *fakeCoordinator, *memstore.Store) {
	store := memstore.New()
	coord := &fakeCoordinator{store: store}
	return NewServer(coord, store), coord, store
}

func TestPingAndReady(t *testing.T) {
	s, _, _ := newTestServer()

	for _, path := range []string{"/ping", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d want 200", path, rec.Code)
		}
	}
}

func TestCreateStoreJobThenGetAndList(t *testing.T) {
	s, _, _ := newTestServer()

	body, _ := json.Marshal(types.CreateStoreJob{Name: "orders", Stream: "ORDERS", Subject: "orders.created", Bucket: "bucket"})
	req := httptest.NewRequest(http.MethodPost, "/store/job", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /store/job: status = %d body = %s", rec.Code, rec.Body.String())
	}
	var created types.StoreJob
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated id in response")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/store/job?job_id="+created.ID, nil)
	getRec := httptest.NewRecorder()
	s.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("GET /store/job: status = %d", getRec.Code)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/store/jobs", nil)
	listRec := httptest.NewRecorder()
	s.ServeHTTP(listRec, listReq)
	var jobs []types.StoreJob
	if err := json.Unmarshal(listRec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("listed %d jobs, want 1", len(jobs))
	}
}

func TestGetStoreJobNotFoundReturns404(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/store/job?job_id=missing", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d want 404", rec.Code)
	}
}

func TestCreateStoreJobAlreadyRunningReturns409(t *testing.T) {
	s, coord, _ := newTestServer()
	coord.failWithJobAlreadyRunning = true

	body, _ := json.Marshal(types.CreateStoreJob{Name: "orders", Stream: "ORDERS", Subject: "orders.created", Bucket: "bucket"})
	req := httptest.NewRequest(http.MethodPost, "/store/job", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d want 409", rec.Code)
	}
}

func TestPauseAndResumeLoadJob(t *testing.T) {
	s, _, store := newTestServer()

	job, err := store.CreateLoadJob(context.Background(), types.LoadJob{ID: "l1", Status: types.StatusRunning, Bucket: "bucket"})
	if err != nil {
		t.Fatalf("CreateLoadJob() error = %v", err)
	}

	pauseReq := httptest.NewRequest(http.MethodPost, "/load/job/pause?job_id="+job.ID, nil)
	pauseRec := httptest.NewRecorder()
	s.ServeHTTP(pauseRec, pauseReq)
	if pauseRec.Code != http.StatusOK {
		t.Fatalf("pause: status = %d", pauseRec.Code)
	}
	var paused types.LoadJob
	_ = json.Unmarshal(pauseRec.Body.Bytes(), &paused)
	if paused.Status != types.StatusPaused {
		t.Errorf("Status = %v want Paused", paused.Status)
	}

	resumeReq := httptest.NewRequest(http.MethodPost, "/load/job/resume?job_id="+job.ID, nil)
	resumeRec := httptest.NewRecorder()
	s.ServeHTTP(resumeRec, resumeReq)
	var resumed types.LoadJob
	_ = json.Unmarshal(resumeRec.Body.Bytes(), &resumed)
	if resumed.Status != types.StatusRunning {
		t.Errorf("Status = %v want Running", resumed.Status)
	}
}

func TestDeleteStoreJobMissingJobIDReturns400(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodDelete, "/store/job", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d want 400", rec.Code)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d want 200", rec.Code)
	}
}
