package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"linksummary/internal/domain"
	"linksummary/internal/pipeline"
	"linksummary/internal/summarizer"

	"github.com/gorilla/mux"
)

const (
	maxFormBytes      = 64 << 10
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// Runner executes one summarization request.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Result
}

type Server struct {
	runner          Runner
	defaultStrategy string
	requestTimeout  time.Duration
	log             *slog.Logger
}

func NewServer(
	runner Runner,
	defaultStrategy string,
	requestTimeout time.Duration,
	log *slog.Logger,
) *Server {
	return &Server{
		runner:          runner,
		defaultStrategy: defaultStrategy,
		requestTimeout:  requestTimeout,
		log:             log,
	}
}

func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/", s.indexHandler).Methods(http.MethodGet)
	r.HandleFunc("/", s.formHandler).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/summarize", s.apiSummarizeHandler).Methods(http.MethodPost)

	return r
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoContext(ctx, "Web server is listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "Web server is stopped")

	return nil
}

type pageData struct {
	URL        string
	Strategy   string
	Strategies []string
	Summary    string
	Error      string
}

func (s *Server) newPageData() pageData {
	return pageData{
		Strategy:   s.defaultStrategy,
		Strategies: []string{summarizer.StrategyMapReduce, summarizer.StrategyStuff},
	}
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, s.newPageData())
}

func (s *Server) formHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		data := s.newPageData()
		data.Error = "Failed to read the form."
		s.render(w, r, http.StatusBadRequest, data)
		return
	}

	data := s.newPageData()
	data.URL = strings.TrimSpace(r.PostFormValue("url"))
	if strategy := strings.TrimSpace(r.PostFormValue("strategy")); strategy != "" {
		data.Strategy = strategy
	}

	res := s.run(r.Context(), pipeline.Request{
		URL:        data.URL,
		Credential: r.PostFormValue("api_key"),
		Strategy:   data.Strategy,
	})

	status := http.StatusOK
	if res.OK() {
		data.Summary = res.Summary
	} else {
		data.Error = res.Message()
		status = statusForKind(res.Kind())
	}

	s.render(w, r, status, data)
}

type summarizeRequest struct {
	URL      string `json:"url"`
	APIKey   string `json:"api_key"`
	Strategy string `json:"strategy,omitempty"`
}

type summarizeResponse struct {
	Summary string     `json:"summary,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) apiSummarizeHandler(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, summarizeResponse{Error: &errorBody{
			Kind:    domain.KindMissingInput.String(),
			Message: "Request body must be a JSON object with url and api_key.",
		}})
		return
	}

	res := s.run(r.Context(), pipeline.Request{
		URL:        req.URL,
		Credential: req.APIKey,
		Strategy:   req.Strategy,
	})

	if !res.OK() {
		s.writeJSON(w, r, statusForKind(res.Kind()), summarizeResponse{Error: &errorBody{
			Kind:    res.Kind().String(),
			Message: res.Message(),
		}})
		return
	}

	s.writeJSON(w, r, http.StatusOK, summarizeResponse{Summary: res.Summary})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) run(ctx context.Context, req pipeline.Request) pipeline.Result {
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	return s.runner.Run(ctx, req)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := indexTemplate.Execute(w, data); err != nil {
		s.log.ErrorContext(r.Context(), "Failed to render page",
			"error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.ErrorContext(r.Context(), "Failed to write JSON response",
			"error", err)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.log.InfoContext(r.Context(), "HTTP request is handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsedSeconds", time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindMissingInput, domain.KindInvalidURL:
		return http.StatusBadRequest
	case domain.KindContentUnavailable:
		return http.StatusUnprocessableEntity
	case domain.KindModelUnavailable, domain.KindGenerationError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
