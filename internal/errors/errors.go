// Package errors defines the stable error code system for vchain.
package errors

import (
	"errors"
	"fmt"
	"io"
)

// Code is a stable error code string.
type Code string

// Error codes. Stable public contract.
const (
	EUsage    Code = "E_USAGE"
	EInternal Code = "E_INTERNAL"

	// Chain configuration
	EConfig        Code = "E_CONFIG"         // unknown layer, malformed order, bad vchain.yaml
	EInvalidTarget Code = "E_INVALID_TARGET" // target path missing or not a directory

	// Chain outcomes
	ENoArtifacts       Code = "E_NO_ARTIFACTS"        // every configured layer was skipped
	ELayerFailed       Code = "E_LAYER_FAILED"        // a layer's external tool reported failure
	EContractPre       Code = "E_CONTRACT_PRE"        // contract precondition violation
	EContractPost      Code = "E_CONTRACT_POST"       // contract postcondition violation
	EContractInvariant Code = "E_CONTRACT_INVARIANT"  // contract invariant violation
	EPersistFailed     Code = "E_PERSIST_FAILED"      // report record or events file could not be written
	EToolNotRegistered Code = "E_TOOL_NOT_REGISTERED" // doctor: no command for a detected technology
	EToolNotFound      Code = "E_TOOL_NOT_FOUND"      // doctor: registered executable not on PATH
)

// Process exit codes. Public contract.
const (
	ExitOK                = 0
	ExitContractPre       = 1
	ExitContractPost      = 2
	ExitContractInvariant = 3
	ExitNoArtifacts       = 11
	ExitLayerFailed       = 13
	ExitConfig            = 15
	ExitUsage             = 64
	ExitInternal          = 70
)

// VChainError is the standard error type for vchain errors.
type VChainError struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string // optional structured context
}

// Error returns the stable error format: "CODE: message".
func (e *VChainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *VChainError) Unwrap() error {
	return e.Cause
}

// ExitCodeError wraps an error with an explicit process exit code.
type ExitCodeError struct {
	Err  error
	Code int
}

func (e *ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

func (e *ExitCodeError) ExitCode() int {
	return e.Code
}

// WithExitCode wraps err with a specific process exit code.
func WithExitCode(err error, code int) error {
	return &ExitCodeError{Err: err, Code: code}
}

// New creates a new VChainError with the given code and message.
func New(code Code, msg string) error {
	return &VChainError{Code: code, Msg: msg}
}

// NewWithDetails creates a new VChainError with code, message, and details.
// Details map is copied (nil if empty).
func NewWithDetails(code Code, msg string, details map[string]string) error {
	return &VChainError{Code: code, Msg: msg, Details: copyDetails(details)}
}

// Wrap creates a new VChainError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &VChainError{Code: code, Msg: msg, Cause: err}
}

// WrapWithDetails creates a new VChainError wrapping an underlying error with details.
func WrapWithDetails(code Code, msg string, err error, details map[string]string) error {
	return &VChainError{Code: code, Msg: msg, Cause: err, Details: copyDetails(details)}
}

// GetCode extracts the error code from an error, or empty string if not a VChainError.
func GetCode(err error) Code {
	var ve *VChainError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// AsVChainError returns (*VChainError, true) if err is or wraps a VChainError.
func AsVChainError(err error) (*VChainError, bool) {
	var ve *VChainError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}

// codeExits maps error codes to process exit codes.
var codeExits = map[Code]int{
	EUsage:             ExitUsage,
	EConfig:            ExitConfig,
	EInvalidTarget:     ExitConfig,
	ENoArtifacts:       ExitNoArtifacts,
	ELayerFailed:       ExitLayerFailed,
	EContractPre:       ExitContractPre,
	EContractPost:      ExitContractPost,
	EContractInvariant: ExitContractInvariant,
	EToolNotRegistered: ExitLayerFailed,
	EToolNotFound:      ExitLayerFailed,
}

// ExitCode returns the process exit code for an error.
// An explicit ExitCodeError wins; otherwise the code table applies and
// anything unrecognised is an internal error.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	if code, ok := codeExits[GetCode(err)]; ok {
		return code
	}
	return ExitInternal
}

// CodeForExit returns the error code describing a chain exit code.
// Returns "" for ExitOK.
func CodeForExit(exit int) Code {
	switch exit {
	case ExitOK:
		return ""
	case ExitContractPre:
		return EContractPre
	case ExitContractPost:
		return EContractPost
	case ExitContractInvariant:
		return EContractInvariant
	case ExitNoArtifacts:
		return ENoArtifacts
	case ExitConfig:
		return EConfig
	default:
		return ELayerFailed
	}
}

// Print writes the error to w in the stable stderr format:
//
//	error_code: <CODE>
//	<message>
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	var ve *VChainError
	if errors.As(err, &ve) {
		_, _ = fmt.Fprintf(w, "error_code: %s\n", ve.Code)
		_, _ = fmt.Fprintln(w, ve.Msg)
	} else {
		_, _ = fmt.Fprintln(w, err.Error())
	}
}
