package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// ToolHandler executes one tool call and returns its textual output. A
// returned *InvalidArgumentsError maps to code -32602; any other error maps
// to -32603.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (string, error)

// Tool is one tool descriptor as exposed by tools/list.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// InvalidArgumentsError marks a tool failure caused by the caller's
// arguments rather than the tool's execution.
type InvalidArgumentsError struct {
	Message string
}

func (e *InvalidArgumentsError) Error() string { return e.Message }

// ErrInvalidArguments builds an InvalidArgumentsError.
func ErrInvalidArguments(message string) error {
	return &InvalidArgumentsError{Message: message}
}

// ServerInfo identifies the server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Server is a line-delimited JSON-RPC 2.0 tool server. Requests are read
// one at a time and handled to completion before the next read, so tool
// handlers never run concurrently.
type Server struct {
	transport  *Transport
	tools      []Tool
	handlers   map[string]ToolHandler
	serverInfo ServerInfo
	logger     *slog.Logger
}

// NewServer creates a server over the given stream pair.
func NewServer(reader io.Reader, writer io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		transport: NewTransport(reader, writer),
		handlers:  make(map[string]ToolHandler),
		logger:    logger,
	}
}

// SetServerInfo sets the name and version reported by initialize.
func (s *Server) SetServerInfo(name, version string) {
	s.serverInfo = ServerInfo{Name: name, Version: version}
}

// RegisterTool adds a tool. Registration order is the order tools/list
// reports.
func (s *Server) RegisterTool(tool Tool, handler ToolHandler) {
	s.tools = append(s.tools, tool)
	s.handlers[tool.Name] = handler
}

type toolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type capabilities struct {
	Tools *toolsCapability `json:"tools,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

type toolsListResult struct {
	Tools []Tool `json:"tools"`
}

type toolsCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolsCallResult struct {
	Content []textContent `json:"content"`
}

// HandleOne reads and handles a single request. Unparseable lines produce
// an error response with a null ID and code -32600.
func (s *Server) HandleOne(ctx context.Context) error {
	req, err := s.transport.ReadRequest()
	if err != nil {
		if pe, ok := AsProtocolError(err); ok {
			return s.transport.WriteResponse(
				NewErrorResponse(json.RawMessage("null"), pe.Code, pe.Message))
		}
		return err
	}
	return s.handleRequest(ctx, req)
}

func (s *Server) handleRequest(ctx context.Context, req *Request) error {
	if req.IsNotification() {
		// Notifications never get a response, whatever the method.
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.sendResult(req.ID, initializeResult{
			ProtocolVersion: "2024-11-05",
			Capabilities:    capabilities{Tools: &toolsCapability{}},
			ServerInfo:      s.serverInfo,
		})
	case "notifications/initialized", "initialized":
		return s.sendResult(req.ID, struct{}{})
	case "tools/list":
		return s.sendResult(req.ID, toolsListResult{Tools: s.toolList()})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "resources/list":
		return s.sendResult(req.ID, map[string]interface{}{"resources": []interface{}{}})
	case "resources/templates/list":
		return s.sendResult(req.ID, map[string]interface{}{"resourceTemplates": []interface{}{}})
	default:
		return s.sendError(req.ID, MethodNotFound, "Method not found: "+req.Method)
	}
}

func (s *Server) toolList() []Tool {
	if s.tools == nil {
		return []Tool{}
	}
	return s.tools
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) error {
	var params toolsCallParams
	if req.Params == nil {
		return s.sendError(req.ID, InvalidParams, "Invalid params: missing tool name")
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.sendError(req.ID, InvalidParams, "Invalid params: "+err.Error())
	}

	handler, ok := s.handlers[params.Name]
	if !ok {
		return s.sendError(req.ID, InvalidParams, "Unknown tool: "+params.Name)
	}

	output, err := handler(ctx, params.Arguments)
	if err != nil {
		var iae *InvalidArgumentsError
		if errors.As(err, &iae) {
			return s.sendError(req.ID, InvalidParams, iae.Message)
		}
		s.logger.Debug("tool call failed", "tool", params.Name, "error", err)
		return s.sendError(req.ID, InternalError, err.Error())
	}

	return s.sendResult(req.ID, toolsCallResult{
		Content: []textContent{{Type: "text", Text: output}},
	})
}

func (s *Server) sendResult(id json.RawMessage, result interface{}) error {
	data, err := json.Marshal(result)
	if err != nil {
		return s.sendError(id, InternalError, "Failed to marshal result: "+err.Error())
	}
	return s.transport.WriteResponse(&Response{JSONRPC: "2.0", ID: id, Result: data})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	return s.transport.WriteResponse(NewErrorResponse(id, code, message))
}

// Serve runs the request loop until the input stream closes or the context
// is cancelled. Per-request failures are logged and the loop continues.
func (s *Server) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			err := s.HandleOne(ctx)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				s.logger.Error("request handling failed", "error", err)
			}
		}
	}
}

// ServeWithSignalHandler runs Serve and cancels it on SIGINT or SIGTERM.
func (s *Server) ServeWithSignalHandler() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		cancel()
	}()

	err := s.Serve(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}
