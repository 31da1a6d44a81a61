// Package web serves the upload and map API used by the browser front-end.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/extract"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/imagery"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/pipeline"
)

// uploadField is the multipart field holding the image files.
const uploadField = "file"

// maxJSONBytes caps the body of the JSON endpoints.
const maxJSONBytes = 64 << 10

// Runner is the batch pipeline the server drives.
type Runner interface {
	Run(ctx context.Context, images []imagery.Image) []model.ParcelResult
	RunIdentifiers(ctx context.Context, ids []model.IdentifierRecord) []model.ParcelResult
}

// BatchResponse is returned by every endpoint that runs a batch.
type BatchResponse struct {
	RunID   uuid.UUID            `json:"run_id"`
	Summary model.Summary        `json:"summary"`
	Results []model.ParcelResult `json:"results"`
	Map     model.MapPayload     `json:"map"`
}

// Server holds the router and the map payload of the most recent batch.
type Server struct {
	runner  Runner
	origins []string

	mu      sync.RWMutex
	lastMap model.MapPayload
}

// NewServer creates a Server. allowedOrigins configures CORS; empty allows
// same-origin requests only.
func NewServer(runner Runner, allowedOrigins []string) *Server {
	return &Server{
		runner:  runner,
		origins: allowedOrigins,
		lastMap: model.BuildMapPayload(nil),
	}
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/coordinates", s.handleCoordinates)
		r.Post("/resolve", s.handleResolve)
		r.Get("/map", s.handleMap)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imagery.MaxUploadBytes)
	if err := r.ParseMultipartForm(imagery.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 16MB.")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}

	images := make([]imagery.Image, 0, len(files))
	for _, fh := range files {
		if fh.Filename == "" {
			writeError(w, http.StatusBadRequest, "No file selected")
			return
		}
		img, err := decodeUpload(fh.Filename, fh.Open)
		if err != nil {
			zap.L().Warn("web: rejected upload", zap.String("file", fh.Filename), zap.Error(err))
			writeError(w, uploadStatus(err), err.Error())
			return
		}
		images = append(images, img)
	}

	runID := uuid.New()
	results := s.runner.Run(pipeline.WithRunID(r.Context(), runID), images)
	s.respondBatch(w, runID, results)
}

// CoordinatesRequest is the body of POST /api/coordinates.
type CoordinatesRequest struct {
	Coordinates string `json:"coordinates"`
}

func (s *Server) handleCoordinates(w http.ResponseWriter, r *http.Request) {
	var req CoordinatesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Coordinates == "" {
		writeError(w, http.StatusBadRequest, "No coordinates provided")
		return
	}

	id, err := extract.ParseCoordinates(req.Coordinates)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := uuid.New()
	results := s.runner.RunIdentifiers(pipeline.WithRunID(r.Context(), runID), []model.IdentifierRecord{id})
	s.respondBatch(w, runID, results)
}

// ResolveRequest is the body of POST /api/resolve.
type ResolveRequest struct {
	AssessorNumber string `json:"assessor_number"`
	Address        string `json:"address"`
	County         string `json:"county"`
	State          string `json:"state"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := model.IdentifierRecord{
		AssessorNumber: model.CoerceString(req.AssessorNumber),
		Address:        model.CoerceString(req.Address),
		County:         model.CoerceString(req.County),
		State:          model.CoerceString(req.State),
		RawText:        "Manual entry",
	}
	if !id.HasSearchKey() {
		writeError(w, http.StatusBadRequest, "assessor_number or address is required")
		return
	}

	runID := uuid.New()
	results := s.runner.RunIdentifiers(pipeline.WithRunID(r.Context(), runID), []model.IdentifierRecord{id})
	s.respondBatch(w, runID, results)
}

func (s *Server) handleMap(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.LastMap())
}

// LastMap returns the map payload of the most recent batch.
func (s *Server) LastMap() model.MapPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMap
}

func (s *Server) respondBatch(w http.ResponseWriter, runID uuid.UUID, results []model.ParcelResult) {
	payload := model.BuildMapPayload(results)

	s.mu.Lock()
	s.lastMap = payload
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, BatchResponse{
		RunID:   runID,
		Summary: model.Summarize(results),
		Results: results,
		Map:     payload,
	})
}

func decodeUpload(name string, open func() (multipart.File, error)) (imagery.Image, error) {
	f, err := open()
	if err != nil {
		return imagery.Image{}, eris.Wrap(err, "web: open upload")
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(f)
	if err != nil {
		return imagery.Image{}, eris.Wrap(err, "web: read upload")
	}
	return imagery.Decode(name, data)
}

func uploadStatus(err error) int {
	switch {
	case eris.Is(err, imagery.ErrTooLarge), eris.Is(err, imagery.ErrTooManyPixels):
		return http.StatusRequestEntityTooLarge
	case eris.Is(err, imagery.ErrUnsupportedFormat), eris.Is(err, imagery.ErrPDFUnsupported):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("web: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// decodeBody reads a size-limited JSON body into v, writing the error
// response itself when it fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("web: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
