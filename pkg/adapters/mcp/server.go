package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/deprebuddy"
	"github.com/aretw0/deprebuddy/pkg/crisis"
	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/aretw0/deprebuddy/pkg/phq"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

// QuestionsURI is the resource exposing the question bank.
const QuestionsURI = "deprebuddy://questions"

// MaxTotalScore is the highest PHQ total over the scored items.
const MaxTotalScore = 3 * domain.TotalQuestions

// Engine is the screening core seen by the MCP server.
type Engine interface {
	Chat(ctx context.Context, sessionID, message string) (*deprebuddy.ChatResult, error)
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context) ([]string, error)
}

// ChatOutput is the structured result of the chat tool.
type ChatOutput struct {
	SessionID          string   `json:"session_id" jsonschema_description:"Session the turn was applied to"`
	Message            string   `json:"message" jsonschema_description:"Agent reply"`
	CurrentStage       string   `json:"current_stage" jsonschema_description:"Dialogue stage after the turn"`
	PHQ9Score          *int     `json:"phq9_score,omitempty" jsonschema_description:"Total score once the assessment is complete"`
	AssessmentCategory string   `json:"assessment_category,omitempty"`
	CrisisDetected     bool     `json:"crisis_detected"`
	Sources            []string `json:"sources,omitempty"`
}

// SessionOutput is the structured result of the get_session tool.
type SessionOutput struct {
	SessionID          string `json:"session_id"`
	CurrentStage       string `json:"current_stage"`
	Answers            int    `json:"answers" jsonschema_description:"Number of scored answers recorded"`
	NextQuestion       int    `json:"next_question,omitempty"`
	PHQ9Score          *int   `json:"phq9_score,omitempty"`
	AssessmentCategory string `json:"assessment_category,omitempty"`
	CrisisDetected     bool   `json:"crisis_detected"`
	Completed          bool   `json:"completed"`
	Turns              int    `json:"turns"`
}

// SessionsOutput is the structured result of the list_sessions tool.
type SessionsOutput struct {
	Sessions []string `json:"sessions"`
	Count    int      `json:"count"`
}

// ClassifyOutput is the structured result of the classify_score tool.
type ClassifyOutput struct {
	Total    int    `json:"total"`
	Category string `json:"category"`
	Label    string `json:"label"`
}

type chatArgs struct {
	SessionID string `mapstructure:"session_id"`
	Message   string `mapstructure:"message"`
}

type sessionArgs struct {
	SessionID string `mapstructure:"session_id"`
}

type crisisArgs struct {
	Text string `mapstructure:"text"`
}

type classifyArgs struct {
	Total int `mapstructure:"total"`
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine: engine,
		logger: logger,
		mcpServer: server.NewMCPServer("deprebuddy-mcp", deprebuddy.Version(),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: chat
	s.mcpServer.AddTool(mcp.NewTool("chat",
		mcp.WithDescription("Send one user message to a screening session. Omit session_id to start a new one."),
		mcp.WithString("session_id", mcp.Description("Session to continue (optional)")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The user's message")),
		mcp.WithOutputSchema[ChatOutput](),
	), mcp.NewStructuredToolHandler(s.handleChat))

	// TOOL: get_session
	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Inspect the progress of a screening session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[SessionOutput](),
	), mcp.NewStructuredToolHandler(s.handleGetSession))

	// TOOL: list_sessions
	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List active session IDs."),
		mcp.WithOutputSchema[SessionsOutput](),
	), mcp.NewStructuredToolHandler(s.handleListSessions))

	// TOOL: check_crisis
	s.mcpServer.AddTool(mcp.NewTool("check_crisis",
		mcp.WithDescription("Check a text for crisis language without touching any session."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to check")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in crisisArgs
		if err := decodeArgs(request.GetArguments(), &in); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res := crisis.Detect(in.Text)
		jsonBytes, _ := json.Marshal(res)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: classify_score
	s.mcpServer.AddTool(mcp.NewTool("classify_score",
		mcp.WithDescription("Map a PHQ total score to its severity category."),
		mcp.WithNumber("total", mcp.Required(), mcp.Description(fmt.Sprintf("Total score (0-%d)", MaxTotalScore))),
		mcp.WithOutputSchema[ClassifyOutput](),
	), mcp.NewStructuredToolHandler(s.handleClassify))
}

func (s *Server) handleChat(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ChatOutput, error) {
	var in chatArgs
	if err := decodeArgs(args, &in); err != nil {
		return ChatOutput{}, err
	}

	res, err := s.engine.Chat(ctx, in.SessionID, in.Message)
	if err != nil {
		s.logger.Warn("MCP chat: Input rejected", "err", err, "size", len(in.Message))
		return ChatOutput{}, fmt.Errorf("input rejected: %w", err)
	}

	out := ChatOutput{
		SessionID:          res.SessionID,
		Message:            res.Message,
		CurrentStage:       res.Stage.String(),
		PHQ9Score:          res.Score,
		AssessmentCategory: string(res.Category),
		CrisisDetected:     res.CrisisDetected,
	}
	for _, src := range res.Sources {
		out.Sources = append(out.Sources, src.URI)
	}
	return out, nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SessionOutput, error) {
	var in sessionArgs
	if err := decodeArgs(args, &in); err != nil {
		return SessionOutput{}, err
	}

	sess, err := s.engine.Session(ctx, in.SessionID)
	if err != nil {
		return SessionOutput{}, fmt.Errorf("get session failed: %w", err)
	}

	out := SessionOutput{
		SessionID:      sess.ID,
		CurrentStage:   sess.Stage.String(),
		Answers:        len(sess.Answers),
		CrisisDetected: sess.CrisisFlagged,
		Completed:      sess.Completed,
		Turns:          len(sess.History) / 2,
	}
	if sess.Completed {
		total := sess.TotalScore
		out.PHQ9Score = &total
		out.AssessmentCategory = string(sess.Category)
	} else {
		out.NextQuestion = sess.NextQuestion
	}
	return out, nil
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SessionsOutput, error) {
	ids, err := s.engine.ListSessions(ctx)
	if err != nil {
		return SessionsOutput{}, fmt.Errorf("list sessions failed: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return SessionsOutput{Sessions: ids, Count: len(ids)}, nil
}

func (s *Server) handleClassify(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ClassifyOutput, error) {
	var in classifyArgs
	if err := decodeArgs(args, &in); err != nil {
		return ClassifyOutput{}, err
	}
	if in.Total < 0 || in.Total > MaxTotalScore {
		return ClassifyOutput{}, fmt.Errorf("total %d outside 0-%d", in.Total, MaxTotalScore)
	}

	category := phq.Classify(in.Total)
	return ClassifyOutput{
		Total:    in.Total,
		Category: string(category),
		Label:    category.Label(),
	}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: deprebuddy://questions
	s.mcpServer.AddResource(mcp.NewResource(QuestionsURI, "PHQ Question Bank",
		mcp.WithResourceDescription("Scored questions in order, the self-harm item and the answer scale"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type question struct {
			Index int    `json:"index"`
			Text  string `json:"text"`
		}
		bank := struct {
			Questions      []question `json:"questions"`
			SafetyQuestion question   `json:"safety_question"`
			Scale          string     `json:"scale"`
		}{
			SafetyQuestion: question{Index: phq.SafetyIndex, Text: phq.SafetyQuestion},
			Scale:          phq.AnswerScale,
		}
		for i, q := range phq.Questions {
			bank.Questions = append(bank.Questions, question{Index: i + 1, Text: q})
		}
		jsonBytes, err := json.Marshal(bank)
		if err != nil {
			return nil, fmt.Errorf("failed to encode questions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      QuestionsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
