package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Brownie44l1/imagenet-api/internal/imagesource"
	"github.com/Brownie44l1/imagenet-api/internal/model"
	"github.com/Brownie44l1/imagenet-api/internal/ranking"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Classifier is the part of classifier.Classifier the handlers use.
type Classifier interface {
	ClassifySource(ctx context.Context, src imagesource.Source) (model.PredictionResult, error)
	ClassifyTensor(ctx context.Context, input *model.Tensor) (model.PredictionResult, error)
}

type Options struct {
	SamplePath   string
	FetchTimeout time.Duration
	// MaxUploadBytes bounds multipart uploads and JSON bodies.
	MaxUploadBytes int64
	// HTTPClient fetches /predict/url images. When nil, a client that
	// refuses non-public addresses is built, unless AllowPrivate is set.
	HTTPClient   *http.Client
	AllowPrivate bool
}

type Handler struct {
	classifier Classifier
	opts       Options
	log        zerolog.Logger
}

func NewHandler(classifier Classifier, opts Options, log zerolog.Logger) *Handler {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = imagesource.DefaultTimeout
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = imagesource.DefaultMaxBytes
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = imagesource.NewClient(opts.FetchTimeout, opts.AllowPrivate)
	}
	return &Handler{
		classifier: classifier,
		opts:       opts,
		log:        log,
	}
}

// Routes registers every endpoint on a new mux, wrapped with CORS and
// request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/predict", h.Predict)
	mux.HandleFunc("/predict/image", h.PredictFromImage)
	mux.HandleFunc("/predict/url", h.PredictFromURL)
	mux.HandleFunc("/predict/sample", h.PredictSample)
	return h.logRequests(enableCORS(mux))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Predict accepts an already preprocessed NHWC tensor as a flat float array.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.fail(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req model.PredictionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, h.opts.MaxUploadBytes)).Decode(&req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}

	input, err := model.NewTensor(model.InputShape(), req.Image)
	if err != nil {
		expected, _ := model.ShapeSize(model.InputShape())
		h.fail(w, r, http.StatusBadRequest, fmt.Sprintf("Expected %d values, got %d", expected, len(req.Image)))
		return
	}

	result, err := h.classifier.ClassifyTensor(r.Context(), input)
	h.respond(w, r, result, err)
}

func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.fail(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		h.fail(w, r, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "No image file provided. Use 'image' as the form field name")
		return
	}
	defer file.Close()

	h.log.Debug().
		Str("request_id", requestID(r)).
		Str("file", header.Filename).
		Int64("size", header.Size).
		Msg("Received upload")

	result, err := h.classifier.ClassifySource(r.Context(), imagesource.Reader{Name: header.Filename, R: file})
	h.respond(w, r, result, err)
}

func (h *Handler) PredictFromURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.fail(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req model.URLRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil || req.URL == "" {
		h.fail(w, r, http.StatusBadRequest, `Expected JSON body {"url": "..."}`)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.FetchTimeout)
	defer cancel()

	result, err := h.classifier.ClassifySource(ctx, imagesource.URL{URL: req.URL, Client: h.opts.HTTPClient})
	h.respond(w, r, result, err)
}

func (h *Handler) PredictSample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.fail(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if h.opts.SamplePath == "" {
		h.fail(w, r, http.StatusNotFound, "No sample image configured")
		return
	}

	result, err := h.classifier.ClassifySource(r.Context(), imagesource.Sample{Path: h.opts.SamplePath})
	h.respond(w, r, result, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, result model.PredictionResult, err error) {
	if err != nil {
		status, msg := errorFor(err)
		h.log.Error().
			Err(err).
			Str("request_id", requestID(r)).
			Int("status", status).
			Msg("Prediction failed")
		h.fail(w, r, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, model.PredictionResponse{
		RequestID:   requestID(r),
		Predictions: ranking.Predictions(result),
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{RequestID: requestID(r), Error: msg})
}

// errorFor maps the error taxonomy onto a status code and a fixed message.
// The full error chain only goes to the log.
func errorFor(err error) (int, string) {
	switch {
	case errors.Is(err, imagesource.ErrBlockedAddress):
		return http.StatusBadRequest, "Image URL is not allowed"
	case errors.Is(err, model.ErrInvalidImage):
		return http.StatusBadRequest, "Image could not be loaded or decoded"
	case errors.Is(err, imagesource.ErrSampleUnavailable):
		return http.StatusServiceUnavailable, "Sample image is not available"
	case errors.Is(err, model.ErrEmptyScores):
		return http.StatusBadGateway, "Model returned no predictions"
	case errors.Is(err, model.ErrModelLoad):
		return http.StatusServiceUnavailable, "Model is not available"
	default:
		return http.StatusInternalServerError, "Prediction failed"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type ctxKey struct{}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, id))

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.log.Info().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("Request")
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
