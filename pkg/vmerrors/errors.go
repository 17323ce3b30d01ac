// Package vmerrors implements the runtime error taxonomy and propagation
// shape described in §7 of the specification: a closed set of typed error
// kinds, construction helpers that fill in a semantic message, and the
// single terminate-with-errors result returned to the host.
//
// Fatal conditions (operand-stack underflow, pc-out-of-bounds, malformed
// bytecode, dereferencing a never-allocated heap address) are deliberately
// NOT part of this taxonomy — per §7 they indicate emitter bugs, not
// typed program errors, and are raised as Go panics recovered once at the
// top of the interpreter loop (see pkg/vm). Grounded on the teacher's
// pkg/vm/errors.go (RuntimeError + stack-trace formatting) and on
// self/src/core/error/mod.rs (VMErrorType + throw).
package vmerrors

import "fmt"

// Kind is the closed set of runtime error kinds (§7).
type Kind string

const (
	TypeCoercion           Kind = "TypeCoercion"
	TypeMismatch           Kind = "TypeMismatch"
	InvalidBinaryOperation Kind = "InvalidBinaryOperation"
	DivisionByZero         Kind = "DivisionByZero"
	UndeclaredIdentifier   Kind = "UndeclaredIdentifier"
	NotCallable            Kind = "NotCallable"
	ModuleNotFound         Kind = "ModuleNotFound"
	ExportInvalidMemberType Kind = "ExportInvalidMemberType"
	StructFieldNotFound    Kind = "StructFieldNotFound"
	InvalidArgsCount       Kind = "InvalidArgsCount"

	FsFileNotFound Kind = "Fs.FileNotFound"
	FsNotAFile     Kind = "Fs.NotAFile"
	FsReadError    Kind = "Fs.ReadError"
	FsWriteError   Kind = "Fs.WriteError"
	FsDeleteError  Kind = "Fs.DeleteError"

	NetConnectError Kind = "Net.ConnectError"
	NetReadError    Kind = "Net.ReadError"
	NetWriteError   Kind = "Net.WriteError"

	AIFetchError          Kind = "AI.FetchError"
	AIEngineNotSet        Kind = "AI.EngineNotSet"
	AIEngineNotImplemented Kind = "AI.EngineNotImplemented"

	OsGeneric Kind = "Os.GenericPlaceholder"

	ActionInvalidModule Kind = "Action.InvalidModule"
	ActionInvalidMember Kind = "Action.InvalidMember"
)

// Error is a typed runtime error: a kind label plus a short message and a
// semantic message interpolating the offending operand(s)/origin label.
type Error struct {
	Kind            Kind
	Message         string
	SemanticMessage string
	// Cause, when non-nil, is the underlying error a native module
	// bridge wrapped (e.g. via github.com/pkg/errors) before
	// classification into a typed Kind.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Message, e.SemanticMessage, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Message, e.SemanticMessage)
}

func (e *Error) Unwrap() error { return e.Cause }

// origin picks the diagnostic label to interpolate: an explicit origin
// tag if the caller supplied one, otherwise the value's own string form.
func origin(value fmt.Stringer, originLabel string) string {
	if originLabel != "" {
		return originLabel
	}
	return value.String()
}

// New constructs a typed Error for a kind that needs no further
// interpolation beyond the literal detail string.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Message: messageFor(kind), SemanticMessage: detail}
}

// Wrap constructs a typed Error around an underlying native-module error,
// normally already decorated with github.com/pkg/errors context.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Message: messageFor(kind), SemanticMessage: detail, Cause: cause}
}

func messageFor(kind Kind) string {
	switch kind {
	case TypeCoercion:
		return "Type coercion error"
	case TypeMismatch:
		return "Type mismatch"
	case InvalidBinaryOperation:
		return "Invalid binary operation"
	case DivisionByZero:
		return "Invalid division"
	case UndeclaredIdentifier:
		return "Undeclared identifier"
	case NotCallable:
		return "Not callable member"
	case ModuleNotFound:
		return "Module not found"
	case ExportInvalidMemberType:
		return "Invalid export member type"
	case StructFieldNotFound:
		return "Struct field not found"
	case InvalidArgsCount:
		return "Invalid argument count"
	case FsFileNotFound:
		return "File not found"
	case FsNotAFile:
		return "Not a file"
	case FsReadError:
		return "File read error"
	case FsWriteError:
		return "File write error"
	case FsDeleteError:
		return "File delete error"
	case NetConnectError:
		return "Network connect error"
	case NetReadError:
		return "Network read error"
	case NetWriteError:
		return "Network write error"
	case AIFetchError:
		return "AI fetch error"
	case AIEngineNotSet:
		return "AI engine not set"
	case AIEngineNotImplemented:
		return "AI engine not implemented"
	case OsGeneric:
		return "OS error"
	case ActionInvalidModule:
		return "Invalid action module"
	case ActionInvalidMember:
		return "Invalid action member"
	default:
		return string(kind)
	}
}

// TypeCoercionError builds the TypeCoercion error for a mismatched binary
// operand, per spec.md §4.4 ("no implicit coercion is ever performed").
func TypeCoercionError(value fmt.Stringer, originLabel string) *Error {
	return New(TypeCoercion, fmt.Sprintf("implicit conversion is not permitted. Problem with %s", origin(value, originLabel)))
}

// DivisionByZeroError builds the DivisionByZero error.
func DivisionByZeroError(value fmt.Stringer, originLabel string) *Error {
	return New(DivisionByZero, fmt.Sprintf("cannot divide %s by 0", origin(value, originLabel)))
}

// InvalidBinaryOperationError builds the error for an operator undefined
// for a given type pair (e.g. Bool - Bool).
func InvalidBinaryOperationError(left, right, operator string) *Error {
	return New(InvalidBinaryOperation, fmt.Sprintf("%s %s %s", left, operator, right))
}

// UndeclaredIdentifierError builds the error LOAD_VAR raises when an
// identifier resolves in no active frame.
func UndeclaredIdentifierError(name string) *Error {
	return New(UndeclaredIdentifier, name)
}

// NotCallableError builds the error CALL raises when the popped callee is
// neither a Function heap ref nor a BoundAccess onto one.
func NotCallableError(description string) *Error {
	return New(NotCallable, description)
}

// StructFieldNotFoundError builds the error GET_PROPERTY raises on a
// property miss.
func StructFieldNotFoundError(typeName, property string) *Error {
	return New(StructFieldNotFound, fmt.Sprintf("%s.%s", typeName, property))
}

// Fatal is a non-typed, unrecoverable condition (§7): a JUMP_IF_FALSE
// operand that is not Raw(Bool), a GET_PROPERTY receiver that is not an
// object, a heap dereference of a never-allocated address. These are
// deliberately NOT part of the typed Kind taxonomy above — they indicate
// an emitter bug, not a reportable program error, and propagate as a Go
// panic recovered once at the top of the interpreter loop.
type Fatal struct {
	Detail string
}

func (e Fatal) Error() string { return "fatal: " + e.Detail }

// ExecutionResult is the single terminate-with-errors (or success) shape
// returned to the host (§6, §7).
type ExecutionResult struct {
	Error  *Error
	Result *string // rendered result value, nil if the program returned nothing
}

// Terminate reports a successful run with no typed error.
func Terminate() ExecutionResult { return ExecutionResult{} }

// TerminateWithResult reports a successful run producing a result value.
func TerminateWithResult(rendered string) ExecutionResult {
	return ExecutionResult{Result: &rendered}
}

// TerminateWithErrors reports an aborted run.
func TerminateWithErrors(err *Error) ExecutionResult {
	return ExecutionResult{Error: err}
}
