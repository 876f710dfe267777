package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/reportqa/internal/config"
	"github.com/hyperjump/reportqa/internal/errs"
	"github.com/hyperjump/reportqa/internal/keyword"
	"github.com/hyperjump/reportqa/internal/models"
	"github.com/hyperjump/reportqa/internal/search"
	"github.com/hyperjump/reportqa/internal/storage"
	"go.uber.org/zap"
)

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req models.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, errs.New(errs.KindInvalidInput, "server.answer", "invalid request body"))
		return
	}
	s.logger.Debug("answer request", zap.String("report_id", req.ReportID), zap.Int("question_len", len(req.Question)))
	resp, err := s.engine.Answer(r.Context(), &req)
	if err != nil {
		s.logger.Error("answer failed", zap.String("report_id", req.ReportID), zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUploadReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, errs.Wrap(errs.KindInvalidInput, "server.upload", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, errs.New(errs.KindInvalidInput, "server.upload", "missing file"))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, errs.Wrap(errs.KindInvalidInput, "server.upload", err))
		return
	}
	doc := models.Document{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}
	reportID := r.FormValue("report_id")
	s.logger.Debug("upload report request",
		zap.String("report_id", reportID),
		zap.String("name", doc.Name),
		zap.Int("bytes", len(content)))
	res, err := s.indexer.Ingest(r.Context(), reportID, doc)
	if err != nil {
		s.logger.Error("ingestion failed", zap.String("name", doc.Name), zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "result": res})
}

func (s *Server) handleIndexReport(w http.ResponseWriter, r *http.Request) {
	var req models.IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, errs.New(errs.KindInvalidInput, "server.index_report", "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, errs.Wrap(errs.KindInvalidInput, "server.index_report", err))
		return
	}
	ctx := r.Context()
	doc, err := s.engine.Fetch(ctx, req.URL, req.ContentType)
	if err != nil {
		s.logger.Error("fetch failed", zap.String("url", req.URL), zap.Error(err))
		s.respondError(w, err)
		return
	}
	if req.Name != "" {
		doc.Name = req.Name
	}
	res, err := s.indexer.Ingest(ctx, req.ReportID, doc)
	if err != nil {
		s.logger.Error("ingestion failed", zap.String("url", req.URL), zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":           true,
		"report_id":    res.ReportID,
		"url":          req.URL,
		"content_type": doc.ContentType,
		"name":         doc.Name,
		"result":       res,
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset := queryInt(q.Get("offset"), 0)
	limit := queryInt(q.Get("limit"), 50)
	reports, err := s.engine.ListReports(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list reports failed", zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "reports": reports})
}

func (s *Server) handleSearchReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := &keyword.SearchOptions{NameBoost: 2}
	if fuzzy := q.Get("fuzzy"); fuzzy != "" {
		opts.Fuzziness = queryInt(fuzzy, 1)
	}
	hits, err := s.engine.SearchReports(r.Context(), q.Get("q"), queryInt(q.Get("limit"), 10), opts)
	if err != nil {
		s.logger.Error("report search failed", zap.String("q", q.Get("q")), zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "results": hits})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := s.storage.GetReport(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "report": report})
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete report request", zap.String("id", id))
	if err := s.indexer.DeleteReport(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "status": "deleted"})
}

func (s *Server) handleFigures(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.engine.Figures(r.Context(), id)
	if err != nil {
		s.logger.Error("figures failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*search.FiguresResult
	}{true, res})
}

func (s *Server) handleReportData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	metrics, err := s.engine.Metrics(r.Context(), id)
	if err != nil {
		s.logger.Error("report data failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "metrics": metrics})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportCount, err := s.storage.CountReports(ctx)
	if err != nil {
		s.logger.Error("status: count reports failed", zap.Error(err))
		s.respondError(w, err)
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, err)
		return
	}
	resp := map[string]interface{}{
		"ok":      true,
		"reports": reportCount,
		"chunks":  chunkCount,
	}
	if s.keywordIndex != nil {
		if n, err := s.keywordIndex.DocCount(); err == nil {
			resp["catalog_size"] = n
		}
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"embedding_model":   s.config.OpenAI.EmbeddingModel,
			"chat_model":        s.config.OpenAI.ChatModel,
			"chunk_size":        s.config.Chunking.Size,
			"chunk_overlap":     s.config.Chunking.Overlap,
			"top_n":             s.config.Retrieval.TopN,
			"database_path":     s.config.Storage.DatabasePath,
			"bleve_index_path":  s.config.Storage.BleveIndexPath,
			"object_store_path": s.config.Storage.ObjectStorePath,
		}
		diskBytes, err := storage.DiskUsageBytes(
			s.config.Storage.DatabasePath,
			s.config.Storage.BleveIndexPath,
			s.config.Storage.ObjectStorePath,
		)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondStatus(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondStatus(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondStatus(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondStatus(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.respondStatus(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, err)
		return
	}
	if !info.IsDir() {
		s.respondStatus(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondStatus(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondStatus(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondStatus(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func queryInt(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes err with the status of its kind.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	s.respondJSON(w, errs.HTTPStatus(err), map[string]interface{}{
		"ok":        false,
		"error":     errs.Message(err),
		"kind":      errs.KindOf(err),
		"retryable": errs.IsRetryable(err),
	})
}

func (s *Server) respondStatus(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{"ok": false, "error": message})
}
