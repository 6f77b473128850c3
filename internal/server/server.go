package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ironsheep/openrouter-mcp/internal/content"
	"github.com/ironsheep/openrouter-mcp/internal/logging"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

const (
	// defaultProtocolVersion is answered when the client does not ask for one.
	defaultProtocolVersion = "2024-11-05"

	// maxMessageSize bounds a single request line; image data URIs are
	// large. Longer lines are answered with a parse error and skipped.
	maxMessageSize = 32 << 20
)

// Server speaks MCP over newline-delimited JSON-RPC 2.0.
type Server struct {
	router  *Router
	log     *logging.Logger
	info    mcp.Implementation
	maxLine int
}

// MCPRequest represents an incoming JSON-RPC request. A request without an
// ID is a notification and gets no response.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *MCPError       `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

// New creates a server that dispatches tool calls through router.
func New(router *Router, version string, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Server{
		router:  router,
		log:     log.Named("server"),
		info:    mcp.Implementation{Name: "openrouter-mcp", Version: version},
		maxLine: maxMessageSize,
	}
}

// Run serves requests read from r, one per line, writing responses to w.
// Requests are handled one at a time, in order.
//
// Run returns nil when r is exhausted and ctx.Err() once ctx is cancelled,
// even while it is waiting for input. On cancellation an r that is also an
// io.Closer is closed before Run returns, which unblocks the reader.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)

	done := make(chan struct{})
	defer close(done)
	lines := make(chan inputLine)
	go readLines(r, s.maxLine, lines, done)

	defer func() {
		if c, ok := r.(io.Closer); ok && ctx.Err() != nil {
			_ = c.Close()
		}
	}()

	s.log.Info("server started", logging.String("version", s.info.Version))
	for {
		if err := ctx.Err(); err != nil {
			s.log.Info("context cancelled, shutting down")
			return err
		}

		var in inputLine
		select {
		case <-ctx.Done():
			continue
		case next, ok := <-lines:
			if !ok {
				s.log.Info("input closed, shutting down")
				return nil
			}
			in = next
		}
		if in.err != nil {
			if ctx.Err() != nil {
				continue
			}
			return fmt.Errorf("failed to read request: %w", in.err)
		}

		var resp *MCPResponse
		switch {
		case in.tooLong:
			s.log.Warn("request too large", logging.Int("limit", s.maxLine))
			resp = s.errorResponse(nil, codeParseError, "Parse error", fmt.Sprintf("request exceeds %d bytes", s.maxLine))
		case len(bytes.TrimSpace(in.line)) == 0:
			continue
		default:
			resp = s.handleLine(ctx, in.line)
		}
		if resp == nil {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
}

// inputLine is one newline-terminated request, or the read error that
// ended the input.
type inputLine struct {
	line    []byte
	tooLong bool
	err     error
}

// readLines splits r into lines and sends them on out until r is exhausted
// or done is closed. A line longer than limit is discarded up to its
// newline and reported with tooLong set.
func readLines(r io.Reader, limit int, out chan<- inputLine, done <-chan struct{}) {
	defer close(out)
	send := func(in inputLine) bool {
		select {
		case out <- in:
			return true
		case <-done:
			return false
		}
	}

	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > limit {
				line, tooLong = nil, true
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if len(line) > 0 || tooLong {
			if !send(inputLine{line: line, tooLong: tooLong}) {
				return
			}
		}
		line, tooLong = nil, false

		if err != nil {
			if !errors.Is(err, io.EOF) {
				send(inputLine{err: err})
			}
			return
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) *MCPResponse {
	var req MCPRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.Warn("failed to parse request", logging.Error(err))
		return s.errorResponse(nil, codeParseError, "Parse error", err.Error())
	}
	return s.handleRequest(ctx, &req)
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	if len(req.ID) == 0 {
		s.log.Debug("notification", logging.String("method", req.Method))
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.result(req.ID, map[string]any{"tools": s.router.Tools()})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return s.result(req.ID, map[string]any{})
	default:
		return s.errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}
}

// handleInitialize echoes the client's protocol version.
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}
	}
	version := params.ProtocolVersion
	if version == "" {
		version = defaultProtocolVersion
	}

	s.log.Info("client initialized", logging.String("protocol_version", version))
	return s.result(req.ID, map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": s.info,
	})
}

func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	res, err := s.router.Dispatch(ctx, params.Name, params.Arguments)
	switch {
	case errors.Is(err, ErrMethodNotFound):
		return s.errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Unknown tool: %s", params.Name), nil)
	case err != nil:
		return s.errorResponse(req.ID, codeInternalError, "Tool execution failed", err.Error())
	}
	return s.result(req.ID, toCallToolResult(res))
}

func (s *Server) result(id json.RawMessage, v any) *MCPResponse {
	return &MCPResponse{JSONRPC: "2.0", ID: id, Result: v}
}

func (s *Server) errorResponse(id json.RawMessage, code int, message string, data any) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &MCPError{Code: code, Message: message, Data: data},
	}
}

// toCallToolResult converts a tool result to its MCP wire form.
func toCallToolResult(res content.Result) *mcp.CallToolResult {
	out := &mcp.CallToolResult{
		Content: make([]mcp.Content, 0, len(res.Parts)),
		IsError: res.IsError,
	}
	for _, p := range res.Parts {
		switch p.Kind {
		case content.KindImage:
			data, err := p.Bytes()
			if err != nil {
				out.Content = append(out.Content, &mcp.TextContent{Text: fmt.Sprintf("Invalid image data: %v", err)})
				continue
			}
			out.Content = append(out.Content, &mcp.ImageContent{MIMEType: p.MIMEType, Data: data})
		default:
			out.Content = append(out.Content, &mcp.TextContent{Text: p.Text})
		}
	}
	if len(out.Content) == 0 {
		out.Content = append(out.Content, &mcp.TextContent{Text: "(empty response)"})
	}
	return out
}
