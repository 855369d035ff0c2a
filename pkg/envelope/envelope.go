// Package envelope defines the VW_REQ / VW_RES message pair exchanged between
// the web page, injected script, content script and background of the wallet
// extension, and the JSON wire codec for it.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	apperrors "github.com/vwlab/vwharness/pkg/errors"
)

// Envelope type discriminators
const (
	TypeRequest  = "VW_REQ"
	TypeResponse = "VW_RES"
)

// Error messages carried in failed responses
const (
	MessageMethodNotFound = "Method not found"
	MessageInvalidRequest = "Invalid request"
)

// Request is a VW_REQ envelope.
//
// ID is caller supplied and is not checked for uniqueness.
type Request struct {
	Type   string
	ID     string
	Method string
	Args   []json.RawMessage
}

// Response is a VW_RES envelope. ID echoes the originating request.
type Response struct {
	Type    string
	ID      string
	Success bool
	Result  any
	Data    []any
	Error   *Error
	Persist bool
}

// Error is the error payload of a failed response
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewRequest builds a request, marshaling each arg to JSON
func NewRequest(id, method string, args ...any) (Request, error) {
	req := Request{Type: TypeRequest, ID: id, Method: method}
	for i, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return Request{}, fmt.Errorf("failed to marshal arg %d: %w", i, err)
		}
		req.Args = append(req.Args, raw)
	}
	return req, nil
}

// NewID returns a random message id
func NewID() string {
	return uuid.NewString()
}

// Success builds a successful response for req
func Success(req Request, result any, data ...any) Response {
	return Response{
		Type:    TypeResponse,
		ID:      req.ID,
		Success: true,
		Result:  result,
		Data:    data,
	}
}

// Failure builds a failed response for req
func Failure(req Request, code, message string) Response {
	return Response{
		Type:    TypeResponse,
		ID:      req.ID,
		Success: false,
		Error:   &Error{Message: message, Code: code},
	}
}

// MethodNotFound is the response for a method absent from the method table
func MethodNotFound(req Request) Response {
	return Failure(req, apperrors.ErrCodeMethodNotFound, MessageMethodNotFound)
}

// Correlates reports whether resp answers req
func Correlates(req Request, resp Response) bool {
	return resp.Type == TypeResponse && resp.ID == req.ID
}

type requestParams struct {
	Method json.RawMessage   `json:"method"`
	Params []json.RawMessage `json:"params,omitempty"`
}

type requestWire struct {
	Type   string         `json:"type"`
	ID     *string        `json:"id"`
	Params *requestParams `json:"params"`
}

type responseParams struct {
	Success       bool   `json:"success"`
	Response      any    `json:"response,omitempty"`
	Data          []any  `json:"data,omitempty"`
	Error         *Error `json:"error,omitempty"`
	SaveToStorage bool   `json:"saveToStorage,omitempty"`
}

type responseWire struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Params responseParams `json:"params"`
}

// MarshalJSON encodes the request in wire shape
func (r Request) MarshalJSON() ([]byte, error) {
	method, err := json.Marshal(r.Method)
	if err != nil {
		return nil, err
	}
	id := r.ID
	return json.Marshal(requestWire{
		Type:   r.Type,
		ID:     &id,
		Params: &requestParams{Method: method, Params: r.Args},
	})
}

// MarshalJSON encodes the response in wire shape
func (r Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(responseWire{
		Type: r.Type,
		ID:   r.ID,
		Params: responseParams{
			Success:       r.Success,
			Response:      r.Result,
			Data:          r.Data,
			Error:         r.Error,
			SaveToStorage: r.Persist,
		},
	})
}

// UnmarshalJSON decodes a response from wire shape without validation
func (r *Response) UnmarshalJSON(b []byte) error {
	var w responseWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Response{
		Type:    w.Type,
		ID:      w.ID,
		Success: w.Params.Success,
		Result:  w.Params.Response,
		Data:    w.Params.Data,
		Error:   w.Params.Error,
		Persist: w.Params.SaveToStorage,
	}
	return nil
}

// DecodeRequest parses and validates a wire request.
//
// type must be exactly VW_REQ, id must be a non-empty string and
// params.method a non-empty JSON string. Any violation returns an
// invalid_request AppError. Once type and id have decoded, the returned
// Request carries them even on error so the caller can answer in kind.
func DecodeRequest(b []byte) (Request, error) {
	var w requestWire
	if err := json.Unmarshal(b, &w); err != nil {
		return Request{}, apperrors.InvalidRequest(fmt.Sprintf("malformed JSON: %v", err))
	}

	if w.Type != TypeRequest {
		return Request{}, apperrors.InvalidRequest(fmt.Sprintf("type must be %s, got %q", TypeRequest, w.Type))
	}
	if w.ID == nil || *w.ID == "" {
		return Request{}, apperrors.InvalidRequest("id is required")
	}
	partial := Request{Type: w.Type, ID: *w.ID}
	if w.Params == nil {
		return partial, apperrors.InvalidRequest("params is required")
	}

	method, err := decodeMethod(w.Params.Method)
	if err != nil {
		return partial, err
	}

	return Request{
		Type:   w.Type,
		ID:     *w.ID,
		Method: method,
		Args:   w.Params.Params,
	}, nil
}

func decodeMethod(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", apperrors.InvalidRequest("params.method is required")
	}
	if raw[0] != '"' {
		return "", apperrors.InvalidRequest("params.method must be a string")
	}

	var method string
	if err := json.Unmarshal(raw, &method); err != nil {
		return "", apperrors.InvalidRequest(fmt.Sprintf("params.method: %v", err))
	}
	if method == "" {
		return "", apperrors.InvalidRequest("params.method must not be empty")
	}
	return method, nil
}

// DecodeResponse parses a wire response and checks its discriminator
func DecodeResponse(b []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(b, &resp); err != nil {
		return Response{}, fmt.Errorf("malformed response: %w", err)
	}
	if resp.Type != TypeResponse {
		return Response{}, fmt.Errorf("type must be %s, got %q", TypeResponse, resp.Type)
	}
	return resp, nil
}

// DecodeArg unmarshals args[i] into v. It reports false when the arg is absent.
func (r Request) DecodeArg(i int, v any) (bool, error) {
	if i >= len(r.Args) {
		return false, nil
	}
	raw := bytes.TrimSpace(r.Args[i])
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("arg %d: %w", i, err)
	}
	return true, nil
}

// EncodeResponse encodes resp in wire shape
func EncodeResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}
