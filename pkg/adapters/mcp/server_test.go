package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/aretw0/deprebuddy"
	"github.com/aretw0/deprebuddy/pkg/phq"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(deprebuddy.New(deprebuddy.WithLogger(logger)), logger)
}

// rpc sends one JSON-RPC message and returns the decoded "result" member.
func rpc(t *testing.T, s *Server, method string, params any) map[string]any {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := s.MCPServer().HandleMessage(context.Background(), msg)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Result map[string]any `json:"result"`
		Error  any            `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Nil(t, decoded.Error, string(raw))
	return decoded.Result
}

func initialize(t *testing.T, s *Server) {
	rpc(t, s, "initialize", map[string]any{
		"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0"},
	})
}

func TestTools_Listed(t *testing.T) {
	s := newTestServer(t)
	initialize(t, s)

	result := rpc(t, s, "tools/list", map[string]any{})
	tools, ok := result["tools"].([]any)
	require.True(t, ok)

	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, []string{"chat", "get_session", "list_sessions", "check_crisis", "classify_score"}, names)
}

func TestChat_ThroughSession(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	out, err := s.handleChat(ctx, mcp.CallToolRequest{}, map[string]any{"message": "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, out.SessionID)
	assert.Equal(t, "assessment", out.CurrentStage)
	assert.Contains(t, out.Message, phq.Questions[0])

	out, err = s.handleChat(ctx, mcp.CallToolRequest{}, map[string]any{"session_id": out.SessionID, "message": "several days"})
	require.NoError(t, err)

	sess, err := s.handleGetSession(ctx, mcp.CallToolRequest{}, map[string]any{"session_id": out.SessionID})
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Answers)
	assert.Equal(t, 2, sess.NextQuestion)
	assert.Equal(t, 2, sess.Turns)

	list, err := s.handleListSessions(ctx, mcp.CallToolRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)
}

func TestGetSession_Unknown(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handleGetSession(context.Background(), mcp.CallToolRequest{}, map[string]any{"session_id": "nope"})
	require.Error(t, err)
	assert.True(t, deprebuddy.IsNotFound(err))
}

func TestClassify(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	out, err := s.handleClassify(ctx, mcp.CallToolRequest{}, map[string]any{"total": float64(12)})
	require.NoError(t, err)
	assert.Equal(t, "moderate", out.Category)
	assert.Equal(t, "Moderate depression", out.Label)

	_, err = s.handleClassify(ctx, mcp.CallToolRequest{}, map[string]any{"total": 99})
	assert.Error(t, err)
}

func TestCheckCrisis_Tool(t *testing.T) {
	s := newTestServer(t)
	initialize(t, s)

	result := rpc(t, s, "tools/call", map[string]any{
		"name":      "check_crisis",
		"arguments": map[string]any{"text": "I feel hopeless and want to end my life"},
	})
	content := result["content"].([]any)
	require.Len(t, content, 1)
	text := content[0].(map[string]any)["text"].(string)

	var res struct {
		Flagged bool `json:"crisis_detected"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.True(t, res.Flagged)
}

func TestQuestionsResource(t *testing.T) {
	s := newTestServer(t)
	initialize(t, s)

	result := rpc(t, s, "resources/read", map[string]any{"uri": QuestionsURI})
	contents := result["contents"].([]any)
	require.Len(t, contents, 1)
	text := contents[0].(map[string]any)["text"].(string)

	var bank struct {
		Questions []struct {
			Index int `json:"index"`
		} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &bank))
	assert.Len(t, bank.Questions, len(phq.Questions))
}
