package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/snowflake-catalog/pkg/retry"
)

type mockExplorer struct {
	openErr    error
	openCalls  int
	children   []datasource.CatalogNode
	childErr   error
	lastNode   datasource.CatalogNode
	result     datasource.QueryResult
	lastSQL    string
	lastArgs   []any
	lastLimit  int
	lastOffset int
	testErr    error
}

func (m *mockExplorer) Open(context.Context) error {
	m.openCalls++
	return m.openErr
}
func (m *mockExplorer) Close() error                   { return nil }
func (m *mockExplorer) State() datasource.SessionState { return datasource.StateOpen }

func (m *mockExplorer) ChildrenOf(_ context.Context, node datasource.CatalogNode, _ *datasource.CatalogNode) ([]datasource.CatalogNode, error) {
	m.lastNode = node
	return m.children, m.childErr
}

func (m *mockExplorer) Execute(_ context.Context, sqlText string, bindings []any, requestID string) datasource.QueryResult {
	m.lastSQL = sqlText
	m.lastArgs = bindings
	r := m.result
	r.RequestID = requestID
	return r
}

func (m *mockExplorer) TestConnection(context.Context) error { return m.testErr }

func (m *mockExplorer) SearchItems(context.Context, datasource.NodeType, string) ([]datasource.CatalogNode, error) {
	return []datasource.CatalogNode{}, nil
}

func (m *mockExplorer) ShowRecords(_ context.Context, table datasource.CatalogNode, limit, offset int) datasource.QueryResult {
	m.lastNode = table
	m.lastLimit = limit
	m.lastOffset = offset
	return m.result
}

func (m *mockExplorer) DescribeTable(_ context.Context, table datasource.CatalogNode) datasource.QueryResult {
	m.lastNode = table
	return m.result
}

type mockSource struct {
	explorers map[string]*mockExplorer
	requested []string
}

func (s *mockSource) Explorer(_ context.Context, name string) (datasource.Explorer, error) {
	s.requested = append(s.requested, name)
	ex, ok := s.explorers[name]
	if !ok {
		return nil, fmt.Errorf("connection %q is not configured", name)
	}
	return ex, nil
}

// newTestServer registers every tool against a single explorer reachable
// under the empty (default) name and "prod".
func newTestServer(t *testing.T, ex *mockExplorer) (*server.MCPServer, *mockSource) {
	t.Helper()
	src := &mockSource{explorers: map[string]*mockExplorer{"": ex, "prod": ex}}
	deps := &Deps{
		Explorers: src,
		Retry:     retry.WithMaxRetries(0),
		Logger:    zap.NewNop(),
	}
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterCatalogTools(s, deps)
	RegisterQueryTools(s, deps)
	RegisterConnectionTools(s, deps)
	RegisterHealthTool(s, "1.2.3", nil)
	return s, src
}

type toolResponse struct {
	Result *struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// callTool executes an MCP tool via the server's HandleMessage method.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolResponse {
	t.Helper()
	req, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"id":      1,
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(s.HandleMessage(context.Background(), req))
	require.NoError(t, err)

	var resp toolResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

// text returns the first text content, failing when the call errored at
// the protocol level.
func (r toolResponse) text(t *testing.T) string {
	t.Helper()
	require.Nil(t, r.Error, "unexpected JSON-RPC error")
	require.NotNil(t, r.Result)
	require.NotEmpty(t, r.Result.Content)
	return r.Result.Content[0].Text
}

func (r toolResponse) errorResponse(t *testing.T) ErrorResponse {
	t.Helper()
	require.True(t, r.Result != nil && r.Result.IsError, "expected a tool error result")
	var e ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(r.text(t)), &e))
	return e
}
