package api

import (
	"context"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roadcheck/internal/analysis"
	"github.com/sells-group/roadcheck/internal/gpx"
	"github.com/sells-group/roadcheck/internal/jobs"
	"github.com/sells-group/roadcheck/internal/model"
)

// ErrInvalidInput marks upload problems reported to the client as 400.
var ErrInvalidInput = eris.New("api: invalid input")

type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(msg string) error {
	return &inputError{msg: msg}
}

const multipartMemory = 8 << 20

type upload struct {
	file      multipart.File
	filename  string
	threshold float64
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "GPX Road Bike Analyzer API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	up, err := s.parseUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeJSONError(w, http.StatusRequestEntityTooLarge, "File too large")
		case errors.Is(err, ErrInvalidInput):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			writeJSONError(w, http.StatusBadRequest, "Invalid multipart form")
		}
		return
	}
	defer up.file.Close() //nolint:errcheck

	path, err := saveTemp(up.file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		zap.L().Error("api: store upload", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "Could not store upload")
		return
	}

	id, err := s.tracker.Submit(up.filename, s.runFunc(path, up.filename, up.threshold))
	if err != nil {
		removeTemp(path)
		zap.L().Error("api: submit analysis", zap.Error(err))
		writeJSONError(w, http.StatusServiceUnavailable, "Analysis service unavailable")
		return
	}

	zap.L().Info("api: analysis submitted",
		zap.String("job_id", id),
		zap.String("filename", up.filename),
		zap.Float64("slope_threshold", up.threshold),
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"analysis_id": id,
		"status":      "started",
	})
}

func (s *Server) parseUpload(r *http.Request) (*upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		if strings.Contains(err.Error(), "request body too large") {
			return nil, &http.MaxBytesError{Limit: s.opts.MaxUploadBytes}
		}
		return nil, eris.Wrap(err, "api: parse multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, invalid("No file uploaded")
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".gpx") {
		_ = file.Close()
		return nil, invalid("File must be a GPX file")
	}

	threshold := s.analyzer.Options().SlopeThresholdPercent
	if raw := strings.TrimSpace(r.FormValue("slope_threshold")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			_ = file.Close()
			return nil, invalid("slope_threshold must be a non-negative number")
		}
		threshold = v
	}

	return &upload{
		file:      file,
		filename:  filepath.Base(header.Filename),
		threshold: threshold,
	}, nil
}

// runFunc parses the stored upload, removes it, then analyzes the route.
func (s *Server) runFunc(path, filename string, threshold float64) jobs.RunFunc {
	an := s.analyzer.WithSlopeThreshold(threshold)
	return func(ctx context.Context, events chan<- model.ProgressEvent) (*model.AnalysisReport, error) {
		route, err := gpx.ParseFile(path)
		removeTemp(path)
		if err != nil {
			return nil, err
		}
		return an.Analyze(ctx, route, filename, events)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.Status(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.Status(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, err)
		return
	}
	if st.Status != model.JobStateCompleted || st.Result == nil {
		writeJSONError(w, http.StatusConflict, "Analysis not completed")
		return
	}

	data, err := analysis.FindingsGeoJSON(st.Result)
	if err != nil {
		zap.L().Error("api: render findings", zap.String("job_id", st.ID), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "Could not render findings")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeNotFound(w http.ResponseWriter, err error) {
	if errors.Is(err, jobs.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "Analysis not found")
		return
	}
	zap.L().Error("api: job lookup", zap.Error(err))
	writeJSONError(w, http.StatusInternalServerError, "Internal error")
}

func saveTemp(src io.Reader) (string, error) {
	f, err := os.CreateTemp("", "roadcheck-*.gpx")
	if err != nil {
		return "", eris.Wrap(err, "api: create temp file")
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		removeTemp(f.Name())
		return "", eris.Wrap(err, "api: write temp file")
	}
	if err := f.Close(); err != nil {
		removeTemp(f.Name())
		return "", eris.Wrap(err, "api: close temp file")
	}
	return f.Name(), nil
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("api: remove temp file", zap.String("path", path), zap.Error(err))
	}
}
