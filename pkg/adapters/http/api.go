package http

import (
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

//go:embed openapi.yaml
var rawSpecYAML []byte

var (
	swaggerOnce sync.Once
	swagger     *openapi3.T
	swaggerErr  error
)

// rawSpec returns the embedded OpenAPI document.
func rawSpec() ([]byte, error) {
	return rawSpecYAML, nil
}

// GetSwagger parses the embedded OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	swaggerOnce.Do(func() {
		loader := openapi3.NewLoader()
		swagger, swaggerErr = loader.LoadFromData(rawSpecYAML)
	})
	return swagger, swaggerErr
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// InfoResponse carries build and API versions.
type InfoResponse struct {
	App        string `json:"app"`
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SessionID   string  `json:"session_id"`
	UserMessage *string `json:"user_message"`
}

// Source is a grounding citation attached to a reply.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// ChatResponse is the body of a processed turn.
type ChatResponse struct {
	SessionID          string   `json:"session_id"`
	Message            string   `json:"message"`
	CurrentStage       string   `json:"current_stage"`
	PHQ9Score          *int     `json:"phq9_score,omitempty"`
	AssessmentCategory string   `json:"assessment_category,omitempty"`
	CrisisDetected     *bool    `json:"crisis_detected,omitempty"`
	Sources            []Source `json:"sources,omitempty"`
}

// NewSessionResponse is the body of POST /session/new.
type NewSessionResponse struct {
	SessionID    string `json:"session_id"`
	CurrentStage string `json:"current_stage"`
}

// Turn is one transcript entry.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
	At   string `json:"at,omitempty"`
}

// SessionView is the public projection of a session.
type SessionView struct {
	SessionID          string         `json:"session_id"`
	CurrentStage       string         `json:"current_stage"`
	History            []Turn         `json:"history"`
	Answers            map[string]int `json:"answers"`
	NextQuestion       int            `json:"next_question,omitempty"`
	PHQ9Score          *int           `json:"phq9_score,omitempty"`
	AssessmentCategory string         `json:"assessment_category,omitempty"`
	CrisisDetected     bool           `json:"crisis_detected"`
	Completed          bool           `json:"completed"`
	CreatedAt          string         `json:"created_at,omitempty"`
	UpdatedAt          string         `json:"updated_at,omitempty"`
}

// SessionList is the body of GET /sessions.
type SessionList struct {
	Sessions []string `json:"sessions"`
	Count    int      `json:"count"`
}

// Question is one entry of the question bank.
type Question struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// QuestionBank is the body of GET /questions.
type QuestionBank struct {
	Questions      []Question `json:"questions"`
	SafetyQuestion Question   `json:"safety_question"`
	Scale          string     `json:"scale"`
}

// SubscribeEventsParams are the query parameters of GET /events.
type SubscribeEventsParams struct {
	SessionID string
	Watch     *string
}

// ServerInterface lists the operations of the API.
type ServerInterface interface {
	GetRoot(w http.ResponseWriter, r *http.Request)
	GetHealth(w http.ResponseWriter, r *http.Request)
	GetInfo(w http.ResponseWriter, r *http.Request)
	GetQuestions(w http.ResponseWriter, r *http.Request)
	Chat(w http.ResponseWriter, r *http.Request)
	SubscribeEvents(w http.ResponseWriter, r *http.Request, params SubscribeEventsParams)
	NewSession(w http.ResponseWriter, r *http.Request)
	GetSession(w http.ResponseWriter, r *http.Request, id string)
	DeleteSession(w http.ResponseWriter, r *http.Request, id string)
	ListSessions(w http.ResponseWriter, r *http.Request)
}

// serverInterfaceWrapper binds path and query parameters before calling the handler.
type serverInterfaceWrapper struct {
	handler ServerInterface
}

func (siw *serverInterfaceWrapper) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	siw.handler.GetSession(w, r, id)
}

func (siw *serverInterfaceWrapper) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	siw.handler.DeleteSession(w, r, id)
}

func (siw *serverInterfaceWrapper) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	var params SubscribeEventsParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "session_id", q, &params.SessionID); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter session_id: %v", err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "watch", q, &params.Watch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter watch: %v", err))
		return
	}
	siw.handler.SubscribeEvents(w, r, params)
}

func bindID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter id: %v", err))
		return "", false
	}
	return id, true
}

// HandlerFromMux registers every operation of si on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	wrapper := &serverInterfaceWrapper{handler: si}

	r.Get("/", si.GetRoot)
	r.Get("/health", si.GetHealth)
	r.Get("/info", si.GetInfo)
	r.Get("/questions", si.GetQuestions)
	r.Post("/chat", si.Chat)
	r.Get("/events", wrapper.subscribeEvents)
	r.Post("/session/new", si.NewSession)
	r.Get("/session/{id}", wrapper.getSession)
	r.Delete("/session/{id}", wrapper.deleteSession)
	r.Get("/sessions", si.ListSessions)
	return r
}
