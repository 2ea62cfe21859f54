package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/logging"
	"github.com/ekaya-inc/snowflake-catalog/pkg/metrics"
)

// Event outcomes.
const (
	OutcomeOK                = "ok"
	OutcomeToolError         = "tool_error"
	OutcomeError             = "error"
	OutcomeSecurityViolation = "security_violation"
)

// AuditEvent is one tool call as written to the audit log.
type AuditEvent struct {
	Tool          string
	Outcome       string
	Params        map[string]any
	ResultSummary map[string]any
	ErrorMessage  string
	Duration      time.Duration
}

// AuditLogger writes MCP tool call events to a dedicated zap logger.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger that records MCP events.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logging.OrNop(logger).Named("mcp-audit"),
	}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	event := a.buildEvent(id, req)
	event.Outcome = classifyResult(result)
	event.ResultSummary = summarizeResult(result)
	a.record(event)
}

func (a *AuditLogger) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	event := a.buildEvent(id, req)
	event.Outcome = OutcomeError
	event.ErrorMessage = logging.SanitizeError(err)
	a.record(event)
}

func (a *AuditLogger) loadAndDeleteStart(id any) time.Time {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time)
	}
	return time.Now()
}

func (a *AuditLogger) buildEvent(id any, req *mcplib.CallToolRequest) *AuditEvent {
	return &AuditEvent{
		Tool:     req.Params.Name,
		Params:   sanitizeParams(req.Params.Arguments),
		Duration: time.Since(a.loadAndDeleteStart(id)),
	}
}

func (a *AuditLogger) record(event *AuditEvent) {
	metrics.RecordToolCall(event.Tool, event.Outcome)

	fields := []zap.Field{
		zap.String("tool", event.Tool),
		zap.String("outcome", event.Outcome),
		zap.Duration("duration", event.Duration),
		zap.Any("params", event.Params),
	}
	if event.ResultSummary != nil {
		fields = append(fields, zap.Any("result", event.ResultSummary))
	}

	switch event.Outcome {
	case OutcomeError:
		a.logger.Error("tool call failed", append(fields, zap.String("error", event.ErrorMessage))...)
	case OutcomeSecurityViolation:
		a.logger.Warn("tool call rejected", fields...)
	default:
		a.logger.Info("tool call", fields...)
	}
}

// maxSQLSize is the maximum size of SQL strings kept in audit logs.
const maxSQLSize = 10240 // 10KB

// sqlStringLiteralPattern matches single-quoted SQL literals, including doubled-quote escapes.
var sqlStringLiteralPattern = regexp.MustCompile(`'(?:[^']*(?:'')?)*[^']*'`)

// sensitiveKeyPattern matches argument names whose values are never logged.
var sensitiveKeyPattern = regexp.MustCompile(`(?i)(password|passcode|secret|token|private_?key|credential)`)

// sanitizeParams sanitizes request parameters before they are logged.
// Applies: SQL truncation, string literal redaction, sensitive value hashing.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	if sensitiveKeyPattern.MatchString(key) {
		return hashSensitiveValue(value)
	}

	switch val := value.(type) {
	case string:
		return sanitizeStringParam(key, val)
	case map[string]any:
		return sanitizeParams(val)
	case []any:
		// bindings are user data
		if strings.EqualFold(key, "bindings") {
			return fmt.Sprintf("[%d values]", len(val))
		}
		return val
	default:
		return value
	}
}

// sanitizeStringParam truncates SQL and redacts its string literals.
func sanitizeStringParam(key string, val string) string {
	if len(val) > maxSQLSize {
		val = val[:maxSQLSize] + "...[truncated]"
	}
	if isSQLParam(key) {
		val = redactSQLStringLiterals(val)
	}
	return val
}

// redactSQLStringLiterals replaces the contents of SQL string literals with '***'.
// Numeric literals and identifiers are left intact.
func redactSQLStringLiterals(sql string) string {
	return sqlStringLiteralPattern.ReplaceAllString(sql, "'***'")
}

// isSQLParam returns true if a parameter key likely contains SQL.
func isSQLParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "sql" || lower == "query" || strings.HasSuffix(lower, "_sql") || strings.HasSuffix(lower, "_query")
}

// hashSensitiveValue returns a SHA-256 prefix so entries can be correlated
// without storing the value.
func hashSensitiveValue(value any) string {
	hash := sha256.Sum256([]byte(fmt.Sprint(value)))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

// classifyResult maps a tool result to an outcome. Structured error results
// with code security_violation are flagged separately.
func classifyResult(result *mcplib.CallToolResult) string {
	if result == nil || !result.IsError {
		return OutcomeOK
	}
	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		var payload struct {
			Code string `json:"code"`
		}
		if json.Unmarshal([]byte(tc.Text), &payload) == nil && payload.Code == "security_violation" {
			return OutcomeSecurityViolation
		}
	}
	return OutcomeToolError
}

// summarizeResult creates a compact summary of the tool result.
func summarizeResult(result *mcplib.CallToolResult) map[string]any {
	if result == nil {
		return nil
	}

	summary := map[string]any{
		"is_error": result.IsError,
	}
	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		extractRowCount(tc.Text, summary)
		summary["preview"] = logging.TruncateString(tc.Text, 200)
		break
	}
	return summary
}

// extractRowCount records how many rows a QueryResult payload carried.
func extractRowCount(text string, summary map[string]any) {
	var partial struct {
		Results *[]json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal([]byte(text), &partial); err == nil && partial.Results != nil {
		summary["row_count"] = len(*partial.Results)
	}
}
