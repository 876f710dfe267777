package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/reportqa/internal/config"
	"github.com/hyperjump/reportqa/internal/embedding"
	"github.com/hyperjump/reportqa/internal/extract"
	"github.com/hyperjump/reportqa/internal/indexer"
	"github.com/hyperjump/reportqa/internal/keyword"
	"github.com/hyperjump/reportqa/internal/objectstore"
	"github.com/hyperjump/reportqa/internal/search"
	"github.com/hyperjump/reportqa/internal/storage"
	"github.com/hyperjump/reportqa/internal/synth"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockWatchService struct {
	mu   sync.Mutex
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type staticCompleter struct{ answer string }

func (c staticCompleter) Complete(context.Context, string, string) (string, error) {
	return c.answer, nil
}

const baseURL = "http://reports.local"

const reportBody = "Revenue grew twelve percent in the third quarter. Market risk remains elevated.\f" +
	"Figure 1: Revenue by region chart. Growth in the north outpaced the south.\f" +
	"Table 2: Risk summary. Market conditions favour further growth next year."

func newTestServer(t *testing.T, opts ...Option) (*Server, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })
	objects, err := objectstore.NewDiskStore(filepath.Join(dir, "objects"), baseURL)
	if err != nil {
		t.Fatal(err)
	}
	chunker, err := indexer.NewChunker(60, 10)
	if err != nil {
		t.Fatal(err)
	}
	emb := embedding.NewMockEmbedder(8)
	ex := extract.NewExtractor()
	engine := search.NewEngine(store, emb, chunker, ex, synth.NewSynthesizer(staticCompleter{"Revenue grew 12% [#1]."}),
		search.WithKeywordIndex(kw), search.WithObjectStore(objects), search.WithTopN(2))
	idx := indexer.NewIndexer(store, emb, chunker, ex,
		indexer.WithKeywordIndex(kw), indexer.WithObjectStore(objects))

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "db.sqlite")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")
	cfg.Storage.ObjectStorePath = filepath.Join(dir, "objects")

	opts = append([]Option{WithFiles(objects.Handler()), WithKeywordIndex(kw)}, opts...)
	s := NewServer(engine, idx, store, cfg, nil, opts...)
	return s, s.Router()
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, out
}

func upload(t *testing.T, h http.Handler, reportID, name, content string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if reportID != "" {
		_ = mw.WriteField("report_id", reportID)
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHandleHealth(t *testing.T) {
	_, h := newTestServer(t)
	rec, out := do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || out["ok"] != true {
		t.Errorf("health: %d %v", rec.Code, out)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/answer", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Errorf("allow methods = %q", rec.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestUploadAndAnswer(t *testing.T) {
	_, h := newTestServer(t)
	rec, out := upload(t, h, "r1", "Q3 Report.txt", reportBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	result := out["result"].(map[string]interface{})
	if result["report_id"] != "r1" || result["page_count"].(float64) != 3 {
		t.Errorf("ingest result = %v", result)
	}
	if result["source_url"] != baseURL+"/files/reports/r1/Q3_Report.txt" {
		t.Errorf("source_url = %v", result["source_url"])
	}

	rec, out = do(t, h, http.MethodPost, "/api/v1/answer", map[string]string{
		"report_id": "r1", "question": "How much did revenue grow?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer: %d %s", rec.Code, rec.Body.String())
	}
	if out["ok"] != true || out["answer"] != "Revenue grew 12% [#1]." || out["used_stored"] != true {
		t.Errorf("answer response = %v", out)
	}

	rec, out = do(t, h, http.MethodPost, "/api/v1/answer", map[string]string{
		"report_id": "r1", "question": "Show a bar chart of the top terms",
	})
	if rec.Code != http.StatusOK || out["type"] != "chart" {
		t.Fatalf("chart: %d %v", rec.Code, out)
	}
	payload := out["payload"].(map[string]interface{})
	if payload["kind"] != "bar" || payload["title"] != "Q3 Report.txt — Top terms" {
		t.Errorf("payload = %v", payload)
	}
}

func TestUpload_missingFile(t *testing.T) {
	_, h := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("report_id", "r1")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpload_noTextContent(t *testing.T) {
	_, h := newTestServer(t)
	rec, out := upload(t, h, "r1", "blank.txt", "   \n\t ")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if out["error"] != "No text content extracted" || out["ok"] != false {
		t.Errorf("error response = %v", out)
	}
}

func TestHandleAnswer_doesNotLogQuestion(t *testing.T) {
	s, h := newTestServer(t)
	core, logs := observer.New(zapcore.DebugLevel)
	s.logger = zap.New(core)

	const question = "What did the board decide about layoffs?"
	rec, _ := do(t, h, http.MethodPost, "/api/v1/answer", map[string]string{"report_id": "nope", "question": question})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if logs.FilterMessage("answer request").Len() != 1 {
		t.Fatal("expected one answer request log entry")
	}
	for _, entry := range logs.All() {
		for k, v := range entry.ContextMap() {
			if str, ok := v.(string); ok && strings.Contains(str, "layoffs") {
				t.Errorf("%q logged field %s containing the question", entry.Message, k)
			}
		}
	}
	if got := logs.FilterMessage("answer request").All()[0].ContextMap()["question_len"]; got != int64(len(question)) {
		t.Errorf("question_len = %v", got)
	}
}

func TestHandleAnswer_errors(t *testing.T) {
	_, h := newTestServer(t)
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("  "))
	}))
	defer empty.Close()

	tests := []struct {
		name   string
		body   interface{}
		status int
		msg    string
	}{
		{"bad json", "not an object", http.StatusBadRequest, ""},
		{"missing question", map[string]string{"report_id": "r1"}, http.StatusBadRequest, ""},
		{"unknown report without url", map[string]string{"report_id": "nope", "question": "why?"}, http.StatusNotFound, ""},
		{"empty fetched text", map[string]string{"report_id": "x", "question": "why?", "url": empty.URL + "/a.txt"},
			http.StatusBadRequest, "No text content extracted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := do(t, h, http.MethodPost, "/api/v1/answer", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if out["ok"] != false {
				t.Errorf("ok = %v", out["ok"])
			}
			if tt.msg != "" && out["error"] != tt.msg {
				t.Errorf("error = %v, want %q", out["error"], tt.msg)
			}
		})
	}
}

func TestHandleIndexReport(t *testing.T) {
	_, h := newTestServer(t)
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(reportBody))
	}))
	defer src.Close()

	rec, out := do(t, h, http.MethodPost, "/api/v1/index-report", map[string]string{
		"report_id": "r9", "url": src.URL + "/files/annual.txt",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("index-report: %d %s", rec.Code, rec.Body.String())
	}
	if out["report_id"] != "r9" || out["name"] != "annual.txt" || out["content_type"] != "text/plain" {
		t.Errorf("response = %v", out)
	}

	rec, out = do(t, h, http.MethodGet, "/api/v1/reports/r9", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get report: %d", rec.Code)
	}
	if report := out["report"].(map[string]interface{}); report["name"] != "annual.txt" {
		t.Errorf("report = %v", report)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/v1/index-report", map[string]string{"report_id": "r9"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing url status = %d", rec.Code)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/v1/index-report", map[string]string{"url": src.URL + "/gone"})
	if rec.Code != http.StatusCreated {
		t.Errorf("generated id status = %d", rec.Code)
	}
}

func TestHandleFiguresAndData(t *testing.T) {
	_, h := newTestServer(t)
	if rec, _ := upload(t, h, "r1", "q3.txt", reportBody); rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d", rec.Code)
	}

	rec, out := do(t, h, http.MethodGet, "/api/v1/reports/r1/figures", nil)
	if rec.Code != http.StatusOK || out["ok"] != true {
		t.Fatalf("figures: %d %v", rec.Code, out)
	}
	if out["report_id"] != "r1" || out["report_size"] != "small" || out["total_pages"].(float64) != 3 {
		t.Errorf("figures response = %v", out)
	}
	if figs := out["figures"].([]interface{}); len(figs) != 0 || out["total_figures"].(float64) != 2 {
		t.Errorf("small report should show no figures: shown %d of %v", len(figs), out["total_figures"])
	}

	rec, out = do(t, h, http.MethodGet, "/api/v1/reports/r1/data", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("data: %d", rec.Code)
	}
	metrics := out["metrics"].(map[string]interface{})
	terms := metrics["top_terms"].(map[string]interface{})
	if labels := terms["labels"].([]interface{}); len(labels) == 0 || len(labels) > 12 {
		t.Errorf("top term labels = %v", labels)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/reports/missing/figures", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing report figures status = %d", rec.Code)
	}
}

func TestHandleListSearchDelete(t *testing.T) {
	_, h := newTestServer(t)
	upload(t, h, "r1", "revenue-2023.txt", reportBody)
	upload(t, h, "r2", "staffing.txt", "Headcount rose across all offices.")

	_, out := do(t, h, http.MethodGet, "/api/v1/reports?limit=10", nil)
	if reports := out["reports"].([]interface{}); len(reports) != 2 {
		t.Errorf("listed %d reports, want 2", len(reports))
	}

	rec, out := do(t, h, http.MethodGet, "/api/v1/reports/search?q=headcount", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d %s", rec.Code, rec.Body.String())
	}
	results := out["results"].([]interface{})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	report := results[0].(map[string]interface{})["report"].(map[string]interface{})
	if report["id"] != "r2" {
		t.Errorf("top hit = %v", report["id"])
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/reports/search", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty query status = %d", rec.Code)
	}

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/reports/r1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodGet, "/api/v1/reports/r1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
}

func TestHandleFiles(t *testing.T) {
	_, h := newTestServer(t)
	upload(t, h, "r1", "notes.txt", reportBody)
	req := httptest.NewRequest(http.MethodGet, "/files/reports/r1/notes.txt", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != reportBody {
		t.Errorf("files: %d %q", rec.Code, rec.Body.String())
	}
}

func TestHandleStatus(t *testing.T) {
	_, h := newTestServer(t)
	upload(t, h, "r1", "q3.txt", reportBody)
	rec, out := do(t, h, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if out["reports"].(float64) != 1 || out["chunks"].(float64) < 1 {
		t.Errorf("counts = %v", out)
	}
	if out["catalog_size"].(float64) != 1 {
		t.Errorf("catalog_size = %v", out["catalog_size"])
	}
	if _, ok := out["disk_usage_bytes"]; !ok {
		t.Error("missing disk_usage_bytes")
	}
	cfg := out["config"].(map[string]interface{})
	if cfg["chunk_size"].(float64) != 3000 {
		t.Errorf("config = %v", cfg)
	}
}

func TestHandleWatchDirectories_notEnabled(t *testing.T) {
	_, h := newTestServer(t)
	rec, _ := do(t, h, http.MethodGet, "/api/v1/watch/directories", nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestHandleWatchDirectories(t *testing.T) {
	ws := &mockWatchService{}
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	_, h := newTestServer(t, WithWatch(ws, configPath))
	inbox := t.TempDir()

	rec, _ := do(t, h, http.MethodPost, "/api/v1/watch/directories", map[string]interface{}{"path": inbox, "sync": false})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rec.Code, rec.Body.String())
	}
	_, out := do(t, h, http.MethodGet, "/api/v1/watch/directories", nil)
	if dirs := out["directories"].([]interface{}); len(dirs) != 1 || dirs[0] != inbox {
		t.Errorf("directories = %v", dirs)
	}
	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("saved config: %v", err)
	}
	if len(saved.Watch.Directories) != 1 || saved.Watch.Directories[0] != inbox {
		t.Errorf("saved directories = %v", saved.Watch.Directories)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": filepath.Join(inbox, "missing")})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing dir status = %d", rec.Code)
	}
	file := filepath.Join(inbox, "a.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec, _ = do(t, h, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": file})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("file path status = %d", rec.Code)
	}

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/watch/directories?path="+inbox, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: %d", rec.Code)
	}
	if len(ws.Directories()) != 0 {
		t.Errorf("directories after remove = %v", ws.Directories())
	}
	rec, _ = do(t, h, http.MethodDelete, "/api/v1/watch/directories", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("remove without path status = %d", rec.Code)
	}
}
