// Package protocol implements the line-delimited JSON protocol spoken with procedural
// macro expander processes.
//
// Every message is a single-key JSON object naming its variant, written on one line:
//
//	{"ExpansionMacro":{"macro_body":{...},"macro_name":"foo","attributes":null,"lib":"/path/libfoo.so"}}
//	{"ExpansionMacro":{"expansion":{...}}}
//	{"Error":{"message":"..."}}
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/procmacro/pkg/tt"
)

// ExpanderVersion is the protocol version understood by this host.
const ExpanderVersion = 0

// Variant names used as envelope keys.
const (
	VariantExpansionMacro = "ExpansionMacro"
	VariantError          = "Error"
)

// Request is sent from the host to the expander.
type Request interface {
	isRequest()
}

// ExpansionTask asks the expander to run one macro.
type ExpansionTask struct {
	MacroBody  *tt.Subtree `json:"macro_body"`
	MacroName  string      `json:"macro_name"`
	Attributes *tt.Subtree `json:"attributes"`
	Lib        string      `json:"lib"`
}

// ExpansionMacroRequest is the ExpansionMacro request variant.
type ExpansionMacroRequest struct {
	Task ExpansionTask
}

func (ExpansionMacroRequest) isRequest() {}

// MarshalJSON implements json.Marshaler.
func (r ExpansionMacroRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]ExpansionTask{VariantExpansionMacro: r.Task})
}

// Response is sent from the expander back to the host.
type Response interface {
	isResponse()
}

// ResponseError carries the expander's error message.
type ResponseError struct {
	Message string `json:"message"`
}

// ExpansionResult carries the expanded token tree.
type ExpansionResult struct {
	Expansion *tt.Subtree `json:"expansion"`
}

// ErrorResponse is the Error response variant.
type ErrorResponse struct {
	Error ResponseError
}

// ExpansionMacroResponse is the ExpansionMacro response variant.
type ExpansionMacroResponse struct {
	Result ExpansionResult
}

func (ErrorResponse) isResponse()          {}
func (ExpansionMacroResponse) isResponse() {}

// MarshalJSON implements json.Marshaler.
func (r ErrorResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]ResponseError{VariantError: r.Error})
}

// MarshalJSON implements json.Marshaler.
func (r ExpansionMacroResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]ExpansionResult{VariantExpansionMacro: r.Result})
}

// UnmarshalResponse decodes a response envelope. Error takes precedence when both
// variants are present; an envelope with neither yields tt.ErrUnknownVariant.
func UnmarshalResponse(data []byte) (Response, error) {
	key, payload, err := tt.DecodeVariant(data, VariantError, VariantExpansionMacro)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	switch key {
	case VariantError:
		var e ResponseError
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode error response: %w", err)
		}
		return ErrorResponse{Error: e}, nil
	default:
		var r ExpansionResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("decode expansion response: %w", err)
		}
		if r.Expansion == nil {
			return nil, fmt.Errorf("decode expansion response: missing expansion")
		}
		return ExpansionMacroResponse{Result: r}, nil
	}
}

// UnmarshalRequest decodes a request envelope.
func UnmarshalRequest(data []byte) (Request, error) {
	_, payload, err := tt.DecodeVariant(data, VariantExpansionMacro)
	if err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	var task ExpansionTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return nil, fmt.Errorf("decode expansion request: %w", err)
	}
	if task.MacroBody == nil {
		return nil, fmt.Errorf("decode expansion request: missing macro_body")
	}
	return ExpansionMacroRequest{Task: task}, nil
}
