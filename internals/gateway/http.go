package gateway

import (
	"callbackbroker/internals/models"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"io"
	"mime"
	"net/http"
	"time"
)

const (
	DefaultMaxBodyBytes  = 1 << 20
	DefaultMaxConcurrent = 64
)

var (
	errUnsupportedMediaType = errors.New("only application/json is accepted")
	errBodyTooLarge         = errors.New("request body too large")
)

type subscribeRequest struct {
	CallbackURL *string `json:"client_callback_url"`
}

type publishRequest struct {
	Author   *string `json:"author"`
	Contents *string `json:"contents"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
	models.Stats
}

// HTTPGateway is the REST front end: POST /v1/subscribe, POST /v1/publish
// and GET /healthz.
type HTTPGateway struct {
	broker        models.Broker
	logger        logrus.FieldLogger
	maxBodyBytes  int64
	maxConcurrent int
}

func NewHTTPGateway(broker models.Broker, logger logrus.FieldLogger, maxBodyBytes int64, maxConcurrent int) *HTTPGateway {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &HTTPGateway{
		broker:        broker,
		logger:        logger,
		maxBodyBytes:  maxBodyBytes,
		maxConcurrent: maxConcurrent,
	}
}

func (gw *HTTPGateway) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(gw.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", gw.health)
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Throttle(gw.maxConcurrent))
		r.Post("/subscribe", gw.subscribe)
		r.Post("/publish", gw.publish)
	})
	return r
}

func (gw *HTTPGateway) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := gw.decode(w, r, &req); err != nil {
		gw.writeError(w, r, err)
		return
	}
	if req.CallbackURL == nil {
		gw.writeError(w, r, fmt.Errorf("%w: client_callback_url is required", models.ErrMalformedInput))
		return
	}
	if err := gw.broker.Subscribe(r.Context(), *req.CallbackURL); err != nil {
		gw.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "subscribed"})
}

func (gw *HTTPGateway) publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := gw.decode(w, r, &req); err != nil {
		gw.writeError(w, r, err)
		return
	}
	if req.Author == nil || req.Contents == nil {
		gw.writeError(w, r, fmt.Errorf("%w: author and contents are required", models.ErrMalformedInput))
		return
	}
	message := models.Message{Author: *req.Author, Contents: *req.Contents}
	if err := gw.broker.Publish(r.Context(), message); err != nil {
		gw.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "published"})
}

func (gw *HTTPGateway) health(w http.ResponseWriter, _ *http.Request) {
	stats := gw.broker.Stats()
	resp := healthResponse{Status: "ok", Stats: stats}
	status := http.StatusOK
	if stats.Closed {
		resp.Status = "closing"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (gw *HTTPGateway) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return errUnsupportedMediaType
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, gw.maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return fmt.Errorf("%w: %v", models.ErrMalformedInput, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON body", models.ErrMalformedInput)
	}
	return nil
}

func (gw *HTTPGateway) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrMalformedInput):
		status = http.StatusBadRequest
	case errors.Is(err, errUnsupportedMediaType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, errBodyTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrBrokerClosed):
		status = http.StatusServiceUnavailable
	}

	entry := gw.logger.WithFields(logrus.Fields{
		"path":       r.URL.Path,
		"request_id": middleware.GetReqID(r.Context()),
	}).WithError(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (gw *HTTPGateway) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		gw.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
