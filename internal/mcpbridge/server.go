// Package mcpbridge implements a Model Context Protocol (MCP) server that
// exposes a britcoin daemon's ledger as MCP tools.
//
// The server speaks JSON-RPC 2.0 over stdio, the transport local MCP hosts use.
package mcpbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "britcoin-mcp-bridge"
	maxMessageBytes = 1 << 20
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // absent on notifications
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func errorf(code int, format string, a ...any) *rpcError {
	return &rpcError{Code: code, Message: fmt.Sprintf(format, a...)}
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolResult struct {
	Content []textContent `json:"content"`
	IsError bool          `json:"isError"`
}

// method answers one JSON-RPC method. Async methods run on their own
// goroutine because they reach the daemon over HTTP.
type method struct {
	handle func(ctx context.Context, params json.RawMessage) (any, *rpcError)
	async  bool
}

// Server is a stdio MCP server. Requests are newline-delimited JSON-RPC 2.0
// messages read by Serve; responses go to the writer given to NewServer.
type Server struct {
	tools   *ToolRegistry
	version string
	methods map[string]method
	logger  *zap.Logger

	mu  sync.Mutex // guards enc
	enc *json.Encoder

	inflight sync.WaitGroup
}

// NewServer creates an MCP server that writes responses to w.
// The logger must not write to w.
func NewServer(w io.Writer, tools *ToolRegistry, version string, logger *zap.Logger) *Server {
	s := &Server{
		tools:   tools,
		version: version,
		enc:     json.NewEncoder(w),
		logger:  logger,
	}
	s.methods = map[string]method{
		"initialize": {handle: s.initialize},
		"ping":       {handle: func(context.Context, json.RawMessage) (any, *rpcError) { return struct{}{}, nil }},
		"tools/list": {handle: s.listTools},
		"tools/call": {handle: s.callTool, async: true},
	}
	return s
}

// Serve handles messages from r until EOF or ctx is cancelled, then waits
// for in-flight tool calls to answer.
func (s *Server) Serve(ctx context.Context, r io.Reader) error {
	defer s.inflight.Wait()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, maxMessageBytes), maxMessageBytes)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if line := sc.Bytes(); len(line) > 0 {
			s.handleLine(ctx, line)
		}
	}
	return sc.Err()
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.reply(json.RawMessage(`null`), nil, errorf(codeParseError, "parse error"))
		return
	}
	if len(req.ID) == 0 {
		s.logger.Debug("notification", zap.String("method", req.Method))
		return
	}
	if req.JSONRPC != "2.0" {
		s.reply(req.ID, nil, errorf(codeInvalidRequest, `jsonrpc must be "2.0"`))
		return
	}

	m, ok := s.methods[req.Method]
	if !ok {
		s.reply(req.ID, nil, errorf(codeMethodNotFound, "method not found: %s", req.Method))
		return
	}
	run := func() {
		result, rerr := m.handle(ctx, req.Params)
		s.reply(req.ID, result, rerr)
	}
	if !m.async {
		run()
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		run()
	}()
}

func (s *Server) initialize(context.Context, json.RawMessage) (any, *rpcError) {
	return initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo:      serverInfo{Name: serverName, Version: s.version},
	}, nil
}

func (s *Server) listTools(context.Context, json.RawMessage) (any, *rpcError) {
	return map[string]any{"tools": s.tools.Definitions()}, nil
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, *rpcError) {
	var call struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &call); err != nil || call.Name == "" {
		return nil, errorf(codeInvalidParams, "invalid params")
	}

	text, isErr := s.tools.Call(ctx, call.Name, call.Arguments)
	s.logger.Info("tool call", zap.String("tool", call.Name), zap.Bool("is_error", isErr))
	return toolResult{Content: []textContent{{Type: "text", Text: text}}, IsError: isErr}, nil
}

func (s *Server) reply(id json.RawMessage, result any, rerr *rpcError) {
	resp := rpcResponse{JSONRPC: "2.0", ID: id, Result: result, Error: rerr}
	if rerr != nil {
		resp.Result = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(resp); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}
