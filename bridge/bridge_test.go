package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"

	"github.com/superfill/sfc/autofill"
	"github.com/superfill/sfc/connectivity"
	"github.com/superfill/sfc/dbopen"
	"github.com/superfill/sfc/keyvault"
	"github.com/superfill/sfc/memstore"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

type stubRunner struct {
	result autofill.RunResult
	urls   []string
}

func (r *stubRunner) Run(ctx context.Context, pageURL string) autofill.RunResult {
	r.urls = append(r.urls, pageURL)
	return r.result
}

func newServer(t *testing.T) (*httptest.Server, *stubRunner, *memstore.Store) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(memstore.Schema))
	store := memstore.New(db)
	vault, err := keyvault.New(store, []byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	router := connectivity.New(connectivity.WithLogger(quiet()))
	router.RegisterLocal(autofill.ServiceDetectForms, func(ctx context.Context, payload []byte) ([]byte, error) {
		return json.Marshal(autofill.DetectFormsResponse{Success: true, TotalFields: 2})
	})
	runner := &stubRunner{result: autofill.RunResult{Success: true, RunID: "run-1", FieldsDetected: 2, MappingsFound: 1}}

	svc := New(store, vault, router, runner, WithLogger(quiet()))
	mux := chi.NewRouter()
	svc.RegisterHTTP(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, runner, store
}

func doJSON(t *testing.T, method, url string, body string, out any) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp
}

func TestAutofillEndpoint(t *testing.T) {
	srv, runner, _ := newServer(t)

	var res autofill.RunResult
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/autofill", `{"url":"https://example.com"}`, &res)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if !res.Success || res.RunID != "run-1" {
		t.Fatalf("result: %+v", res)
	}
	if len(runner.urls) != 1 || runner.urls[0] != "https://example.com" {
		t.Errorf("runner calls: %v", runner.urls)
	}
}

func TestAutofillRequiresURL(t *testing.T) {
	srv, _, _ := newServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/autofill", `{}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestAutofillFailureStatus(t *testing.T) {
	srv, runner, _ := newServer(t)
	runner.result = autofill.RunResult{Success: false, Error: "page unreachable"}

	var res autofill.RunResult
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/autofill", `{"url":"https://example.com"}`, &res)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if res.Error != "page unreachable" {
		t.Errorf("error: %q", res.Error)
	}
}

func TestDetectFormsEndpoint(t *testing.T) {
	srv, _, _ := newServer(t)

	var res autofill.DetectFormsResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/detect-forms", `{"url":"https://example.com"}`, &res)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if !res.Success || res.TotalFields != 2 {
		t.Fatalf("result: %+v", res)
	}
}

func TestMemoryCRUD(t *testing.T) {
	srv, _, _ := newServer(t)
	base := srv.URL + "/api/v1/memories"

	var created memstore.MemoryEntry
	resp := doJSON(t, http.MethodPost, base,
		`{"question":"What is your work email?","answer":"user@example.com","category":"contact","tags":["email"],"confidence":0.9}`,
		&created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}
	if created.ID == "" {
		t.Fatal("id not assigned")
	}

	var got memstore.MemoryEntry
	resp = doJSON(t, http.MethodGet, base+"/"+created.ID, "", &got)
	if resp.StatusCode != http.StatusOK || got.Answer != "user@example.com" {
		t.Fatalf("get: status=%d entry=%+v", resp.StatusCode, got)
	}

	var updated memstore.MemoryEntry
	resp = doJSON(t, http.MethodPut, base+"/"+created.ID,
		`{"answer":"work@example.com","category":"contact","confidence":0.9}`, &updated)
	if resp.StatusCode != http.StatusOK || updated.Answer != "work@example.com" {
		t.Fatalf("update: status=%d entry=%+v", resp.StatusCode, updated)
	}

	var list []memstore.MemoryEntry
	resp = doJSON(t, http.MethodGet, base, "", &list)
	if resp.StatusCode != http.StatusOK || len(list) != 1 {
		t.Fatalf("list: status=%d entries=%d", resp.StatusCode, len(list))
	}

	resp = doJSON(t, http.MethodDelete, base+"/"+created.ID, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status: %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, base+"/"+created.ID, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: %d", resp.StatusCode)
	}
}

func TestAddMemoryGeneratesID(t *testing.T) {
	srv, _, _ := newServer(t)

	var created memstore.MemoryEntry
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/memories",
		`{"answer":"user@example.com","category":"contact","confidence":0.9}`, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if !strings.HasPrefix(created.ID, "mem_") {
		t.Errorf("generated ID: got %q, want mem_ prefix", created.ID)
	}
}

func TestAddMemoryAutoCategorizes(t *testing.T) {
	srv, _, _ := newServer(t)

	var created memstore.MemoryEntry
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/memories",
		`{"answer":"user@example.com","question":"Work email","confidence":0.9}`, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if created.Category != "contact" {
		t.Errorf("category: got %q, want contact", created.Category)
	}
	if len(created.Tags) != 1 || created.Tags[0] != "email" {
		t.Errorf("tags: got %v, want [email]", created.Tags)
	}

	// An explicit category is never overridden.
	var kept memstore.MemoryEntry
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/memories",
		`{"answer":"user@example.com","category":"preferences","confidence":0.9}`, &kept)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if kept.Category != "preferences" {
		t.Errorf("category: got %q, want preferences", kept.Category)
	}
}

func TestAddMemoryRejectsMalformedID(t *testing.T) {
	srv, _, _ := newServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/memories",
		`{"id":"../../etc","answer":"x","category":"contact"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	var created memstore.MemoryEntry
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/memories",
		`{"id":"0198f2a0-9e75-7cc1-b7a3-1f2d3c4b5a69","answer":"x","category":"contact"}`, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("import status: %d", resp.StatusCode)
	}
	if created.ID != "0198f2a0-9e75-7cc1-b7a3-1f2d3c4b5a69" {
		t.Errorf("imported ID altered: %q", created.ID)
	}
}

func TestMemoryValidation(t *testing.T) {
	srv, _, _ := newServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/memories", `{"category":"contact"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, _, _ := newServer(t)
	url := srv.URL + "/api/v1/settings"

	var defaults memstore.UserSettings
	resp := doJSON(t, http.MethodGet, url, "", &defaults)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status: %d", resp.StatusCode)
	}
	if defaults.Provider != "openai" {
		t.Errorf("default provider: %q", defaults.Provider)
	}

	var saved memstore.UserSettings
	resp = doJSON(t, http.MethodPut, url,
		`{"selectedProvider":"groq","autoFillEnabled":false,"confidenceThreshold":0.8}`, &saved)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status: %d", resp.StatusCode)
	}

	var got memstore.UserSettings
	doJSON(t, http.MethodGet, url, "", &got)
	if got.Provider != "groq" || got.AutoFillEnabled || got.ConfidenceThreshold != 0.8 {
		t.Fatalf("settings after save: %+v", got)
	}
}

func TestProviderKeyLifecycle(t *testing.T) {
	srv, _, _ := newServer(t)
	url := srv.URL + "/api/v1/keys/openai"

	var status struct {
		Present bool `json:"present"`
	}
	doJSON(t, http.MethodGet, url, "", &status)
	if status.Present {
		t.Fatal("key should not exist yet")
	}

	resp := doJSON(t, http.MethodPut, url, `{"apiKey":"sk-test-123"}`, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("store status: %d", resp.StatusCode)
	}

	doJSON(t, http.MethodGet, url, "", &status)
	if !status.Present {
		t.Fatal("key should be present")
	}

	resp = doJSON(t, http.MethodDelete, url, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status: %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete, url, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status: %d", resp.StatusCode)
	}
}
