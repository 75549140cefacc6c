package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/deprebuddy"
	"github.com/aretw0/deprebuddy/pkg/dialogue"
	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/aretw0/deprebuddy/pkg/phq"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthMessage is the liveness text of GET / and GET /health.
const HealthMessage = "Depre Buddy API is running."

// DefaultMaxBodyBytes bounds the size of a request body.
const DefaultMaxBodyBytes = 64 << 10

// Engine is the screening core seen by the HTTP layer.
type Engine interface {
	Chat(ctx context.Context, sessionID, message string) (*deprebuddy.ChatResult, error)
	NewSession(ctx context.Context) (*domain.Session, error)
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context) ([]string, error)
}

// Server implements ServerInterface.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger       *slog.Logger
	metrics      http.Handler
	maxBodyBytes int64
	tracing      bool
}

var _ ServerInterface = (*Server)(nil)

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request and handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithTracing wraps the handler with OpenTelemetry instrumentation.
func WithTracing(enabled bool) Option {
	return func(s *Server) {
		s.tracing = enabled
	}
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	server := &Server{
		Engine:       engine,
		logger:       slog.Default(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(server)
	}
	server.Streams = NewStreamManager(server.logger)

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(server.logger))
	r.Use(middleware.Recoverer)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		spec, err := rawSpec()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load spec")
			server.logger.Error("Failed to load OpenAPI spec", "err", err)
			return
		}
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(spec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if server.metrics != nil {
		r.Handle("/metrics", server.metrics)
	}

	var handler http.Handler = HandlerFromMux(server, r)
	handler = enableCORS(handler)
	if server.tracing {
		handler = otelhttp.NewHandler(handler, "deprebuddy-http")
	}
	return handler
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Depre Buddy API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetRoot handles GET /.
func (s *Server) GetRoot(w http.ResponseWriter, r *http.Request) {
	s.GetHealth(w, r)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Message: HealthMessage})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}
	writeJSON(w, http.StatusOK, InfoResponse{
		App:        "deprebuddy-http",
		Version:    deprebuddy.Version(),
		APIVersion: apiVersion,
	})
}

// GetQuestions handles GET /questions.
func (s *Server) GetQuestions(w http.ResponseWriter, r *http.Request) {
	bank := QuestionBank{
		Questions:      make([]Question, 0, len(phq.Questions)),
		SafetyQuestion: Question{Index: phq.SafetyIndex, Text: phq.SafetyQuestion},
		Scale:          phq.AnswerScale,
	}
	for i, q := range phq.Questions {
		bank.Questions = append(bank.Questions, Question{Index: i + 1, Text: q})
	}
	writeJSON(w, http.StatusOK, bank)
}

// Chat handles POST /chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var body ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		s.logger.Warn("Chat: Invalid request body", "err", err)
		return
	}
	if body.UserMessage == nil {
		writeError(w, http.StatusBadRequest, "user_message is required")
		return
	}

	// A client hanging up must not abandon a turn halfway through the session update.
	ctx := context.WithoutCancel(r.Context())
	res, err := s.Engine.Chat(ctx, body.SessionID, *body.UserMessage)
	if err != nil {
		if errors.Is(err, dialogue.ErrMessageTooLarge) || errors.Is(err, dialogue.ErrInvalidUTF8) {
			writeError(w, http.StatusBadRequest, "Invalid input: "+err.Error())
			s.logger.Warn("Chat: Input rejected", "err", err, "size", len(*body.UserMessage))
			return
		}
		writeError(w, http.StatusInternalServerError, "Chat failed")
		s.logger.Error("Chat failed", "err", err)
		return
	}

	if !res.Degraded {
		s.Streams.Broadcast(turnEvent(res))
	}
	writeJSON(w, http.StatusOK, chatResponse(res))
}

// NewSession handles POST /session/new.
func (s *Server) NewSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Engine.NewSession(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not create session")
		s.logger.Error("NewSession failed", "err", err)
		return
	}
	writeJSON(w, http.StatusCreated, NewSessionResponse{
		SessionID:    sess.ID,
		CurrentStage: sess.Stage.String(),
	})
}

// GetSession handles GET /session/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := s.Engine.Session(r.Context(), id)
	if err != nil {
		if deprebuddy.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not load session")
		s.logger.Error("GetSession failed", "session_id", id, "err", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}

// DeleteSession handles DELETE /session/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.Engine.DeleteSession(r.Context(), id); err != nil {
		if deprebuddy.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not delete session")
		s.logger.Error("DeleteSession failed", "session_id", id, "err", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.ListSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not list sessions")
		s.logger.Error("ListSessions failed", "err", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, SessionList{Sessions: ids, Count: len(ids)})
}

// -- Helpers --

func ptr[T any](v T) *T {
	return &v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func chatResponse(res *deprebuddy.ChatResult) ChatResponse {
	out := ChatResponse{
		SessionID:    res.SessionID,
		Message:      res.Message,
		CurrentStage: res.Stage.String(),
		PHQ9Score:    res.Score,
	}
	if res.Category != "" {
		out.AssessmentCategory = string(res.Category)
	}
	if res.CrisisDetected {
		out.CrisisDetected = ptr(true)
	}
	for _, src := range res.Sources {
		out.Sources = append(out.Sources, Source{URI: src.URI, Title: src.Title})
	}
	return out
}

func turnEvent(res *deprebuddy.ChatResult) TurnEvent {
	return TurnEvent{
		SessionID:          res.SessionID,
		Stage:              res.Stage.String(),
		StageChanged:       res.Stage != res.PreviousStage,
		CrisisDetected:     res.CrisisDetected,
		CrisisRaised:       res.CrisisRaised,
		PHQ9Score:          res.Score,
		AssessmentCategory: string(res.Category),
	}
}

func sessionView(sess *domain.Session) SessionView {
	v := SessionView{
		SessionID:      sess.ID,
		CurrentStage:   sess.Stage.String(),
		History:        make([]Turn, 0, len(sess.History)),
		Answers:        make(map[string]int, len(sess.Answers)),
		CrisisDetected: sess.CrisisFlagged,
		Completed:      sess.Completed,
	}
	if !sess.Completed {
		v.NextQuestion = sess.NextQuestion
	}
	for _, t := range sess.History {
		turn := Turn{Role: string(t.Role), Text: t.Text}
		if !t.At.IsZero() {
			turn.At = t.At.UTC().Format(time.RFC3339)
		}
		v.History = append(v.History, turn)
	}
	for idx, score := range sess.Answers {
		v.Answers[strconv.Itoa(idx)] = score
	}
	if sess.Completed {
		v.PHQ9Score = ptr(sess.TotalScore)
		v.AssessmentCategory = string(sess.Category)
	}
	if !sess.CreatedAt.IsZero() {
		v.CreatedAt = sess.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !sess.UpdatedAt.IsZero() {
		v.UpdatedAt = sess.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return v
}
