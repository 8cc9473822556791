package mcp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Transport frames JSON-RPC 2.0 over a duplex byte stream: one JSON object
// per line in, one JSON object per line out. Blank input lines are skipped.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	wmu    sync.Mutex
}

// NewTransport wraps the given stream pair.
func NewTransport(reader io.Reader, writer io.Writer) *Transport {
	t := &Transport{writer: writer}
	if reader != nil {
		t.reader = bufio.NewReader(reader)
	}
	return t
}

// ReadRequest reads the next non-blank line and parses it as a request.
// It returns io.EOF when the input stream is exhausted, and a *ProtocolError
// when the line cannot be parsed or fails JSON-RPC 2.0 validation.
func (t *Transport) ReadRequest() (*Request, error) {
	if t.reader == nil {
		return nil, errors.New("no reader configured")
	}

	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				if strings.TrimSpace(line) == "" {
					return nil, io.EOF
				}
				// Final line without a trailing newline still counts.
			} else {
				return nil, fmt.Errorf("read error: %w", err)
			}
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if err == io.EOF {
				return nil, io.EOF
			}
			continue
		}

		var req Request
		if uerr := json.Unmarshal([]byte(trimmed), &req); uerr != nil {
			return nil, &ProtocolError{
				Code:    InvalidRequest,
				Message: "Parse error: " + uerr.Error(),
			}
		}
		if verr := validateRequest(&req); verr != nil {
			return nil, verr
		}
		return &req, nil
	}
}

func validateRequest(req *Request) error {
	if req.JSONRPC != "2.0" {
		return &ProtocolError{
			Code:    InvalidRequest,
			Message: "Invalid Request: jsonrpc must be '2.0'",
		}
	}
	if req.Method == "" {
		return &ProtocolError{
			Code:    InvalidRequest,
			Message: "Invalid Request: missing method field",
		}
	}
	return nil
}

// WriteResponse emits one response as a single line.
func (t *Transport) WriteResponse(resp *Response) error {
	if t.writer == nil {
		return errors.New("no writer configured")
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	_, err = t.writer.Write(append(data, '\n'))
	return err
}

// ProtocolError is a framing-level violation: the line did not parse, or
// the envelope was malformed.
type ProtocolError struct {
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// AsProtocolError unwraps a *ProtocolError from an error chain.
func AsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
