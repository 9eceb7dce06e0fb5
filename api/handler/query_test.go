package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pagequery/cache"
	"github.com/use-agent/pagequery/config"
	"github.com/use-agent/pagequery/models"
	"github.com/use-agent/pagequery/query"
	"github.com/use-agent/pagequery/static"
)

func newTestRouter(t *testing.T, cc *cache.Cache) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srcs := Sources{Static: static.NewSource(5 * time.Second)}
	r := gin.New()
	r.POST("/query", Query(srcs, cc, config.RunnerConfig{MaxTimeout: 30 * time.Second}))
	return r
}

func postQuery(t *testing.T, r *gin.Engine, req models.QueryRequest) (*httptest.ResponseRecorder, models.QueryResponse) {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	w := httptest.NewRecorder()
	httpReq := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, httpReq)

	var resp models.QueryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return w, resp
}

func TestQuery_GroupedExtraction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div><p>Test</p></div><div><p>Foo</p></div></body></html>`))
	}))
	defer srv.Close()

	r := newTestRouter(t, nil)
	w, resp := postQuery(t, r, models.QueryRequest{
		URL: srv.URL,
		Steps: []models.StepSpec{
			{Type: "groupBy", Selector: "body > div"},
			{Type: "select", Fields: map[string]models.FieldDef{
				"title": {Selector: "p"},
			}},
		},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !resp.Success || resp.Count != 2 {
		t.Fatalf("success=%v count=%d, want success with 2 records", resp.Success, resp.Count)
	}
	if resp.Records[0]["title"] != "Test" || resp.Records[1]["title"] != "Foo" {
		t.Errorf("records = %v", resp.Records)
	}
	if resp.Driver != "static" {
		t.Errorf("driver = %q, want static", resp.Driver)
	}
}

func TestQuery_PipelineErrorsMapToStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><body><p>ok</p></body></html>`))
	}))
	defer srv.Close()

	r := newTestRouter(t, nil)

	tests := []struct {
		name       string
		req        models.QueryRequest
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing url",
			req:        models.QueryRequest{URL: "", Steps: nil},
			wantStatus: http.StatusBadRequest,
			wantCode:   models.ErrCodeInvalidInput,
		},
		{
			name: "no select step",
			req: models.QueryRequest{URL: srv.URL, Steps: []models.StepSpec{
				{Type: "groupBy", Selector: "p"},
			}},
			wantStatus: http.StatusBadRequest,
			wantCode:   query.ErrCodeNoResults,
		},
		{
			name: "double select in one scope",
			req: models.QueryRequest{URL: srv.URL, Steps: []models.StepSpec{
				{Type: "select", Fields: map[string]models.FieldDef{"a": {Selector: "p"}}},
				{Type: "select", Fields: map[string]models.FieldDef{"b": {Selector: "p"}}},
			}},
			wantStatus: http.StatusBadRequest,
			wantCode:   query.ErrCodeInvalidPipeline,
		},
		{
			name: "unknown step type",
			req: models.QueryRequest{URL: srv.URL, Steps: []models.StepSpec{
				{Type: "click", Selector: "p"},
			}},
			wantStatus: http.StatusBadRequest,
			wantCode:   query.ErrCodeInvalidPipeline,
		},
		{
			name: "upstream 404",
			req: models.QueryRequest{URL: srv.URL + "/missing", Steps: []models.StepSpec{
				{Type: "select", Fields: map[string]models.FieldDef{"a": {Selector: "p"}}},
			}},
			wantStatus: http.StatusBadGateway,
			wantCode:   query.ErrCodeHTTPStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := postQuery(t, r, tt.req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if resp.Success {
				t.Error("expected success=false")
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestQuery_CacheHit(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`<html><body><p>cached</p></body></html>`))
	}))
	defer srv.Close()

	r := newTestRouter(t, cache.New(10))
	req := models.QueryRequest{
		URL:    srv.URL,
		MaxAge: 60,
		Steps: []models.StepSpec{
			{Type: "select", Fields: map[string]models.FieldDef{
				"body": {Selector: "p"},
			}},
		},
	}

	_, first := postQuery(t, r, req)
	if first.CacheStatus != "miss" {
		t.Errorf("first run cache status = %q, want miss", first.CacheStatus)
	}
	_, second := postQuery(t, r, req)
	if second.CacheStatus != "hit" {
		t.Errorf("second run cache status = %q, want hit", second.CacheStatus)
	}
	if hits != 1 {
		t.Errorf("upstream fetched %d times, want 1", hits)
	}
	if second.Count != 1 || second.Records[0]["body"] != "cached" {
		t.Errorf("cached records = %v", second.Records)
	}
}
