package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error by where it came from, which decides how it is shown to the user.
type Kind int

const (
	// KindInternal is a bug or an unexpected condition inside the bot.
	KindInternal Kind = iota
	// KindNetwork is a transport or decoding failure talking to the backend.
	KindNetwork
	// KindServer is an error reported by the backend itself.
	KindServer
	// KindValidation is a client-side check that stopped the request before it was sent.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// DefaultMessage is shown when nothing more specific is known.
const DefaultMessage = "Что-то пошло не так. Попробуйте ещё раз."

// CustomError carries a user-facing message, a kind, log arguments and an optional cause.
type CustomError struct {
	message string
	kind    Kind
	args    map[string]interface{}
	wrapped error
}

// New creates a new CustomError of KindInternal.
func New(message string) *CustomError {
	return &CustomError{
		message: message,
		args:    make(map[string]interface{}),
	}
}

// Network creates an error for a failed round trip to the backend.
func Network(message string) *CustomError {
	return New(message).WithKind(KindNetwork)
}

// Server creates an error for a message reported by the backend.
func Server(message string) *CustomError {
	return New(message).WithKind(KindServer)
}

// Validation creates an error for input rejected before any request.
func Validation(message string) *CustomError {
	return New(message).WithKind(KindValidation)
}

// Error implements the error interface.
func (e *CustomError) Error() string {
	return e.fullErrorString()
}

// Message returns the message without args and wrapped errors.
func (e *CustomError) Message() string {
	return e.message
}

// Kind returns the error kind.
func (e *CustomError) Kind() Kind {
	return e.kind
}

// WithKind sets the error kind.
func (e *CustomError) WithKind(k Kind) *CustomError {
	e.kind = k
	return e
}

// Arg adds an argument to the error.
func (e *CustomError) Arg(key string, value interface{}) *CustomError {
	e.args[key] = value
	return e
}

// Wrap wraps another error (can be of the same type or a standard error).
func (e *CustomError) Wrap(err error) *CustomError {
	if err != nil {
		e.wrapped = err
	}
	return e
}

// Unwrap returns the wrapped error if any.
func (e *CustomError) Unwrap() error {
	return e.wrapped
}

// KindOf reports the kind of the outermost CustomError in the chain.
func KindOf(err error) Kind {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.kind
	}
	return KindInternal
}

// Message returns the text that may be shown to the user for err.
// Internal errors never leak their details.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ce *CustomError
	if !errors.As(err, &ce) || ce.kind == KindInternal || ce.message == "" {
		return DefaultMessage
	}
	return ce.message
}

// Is reports whether err is a CustomError of kind k.
func Is(err error, k Kind) bool {
	var ce *CustomError
	return errors.As(err, &ce) && ce.kind == k
}

// fullErrorString builds "{msg: <message>, kind: <kind>, args: <args>, wrappedError: {<wrapped>}}".
func (e *CustomError) fullErrorString() string {
	var builder strings.Builder

	builder.WriteString("{msg: ")
	builder.WriteString(e.message)

	if e.kind != KindInternal {
		builder.WriteString(", kind: ")
		builder.WriteString(e.kind.String())
	}

	if len(e.args) > 0 {
		keys := make([]string, 0, len(e.args))
		for k := range e.args {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, e.args[k]))
		}
		builder.WriteString(", args: [")
		builder.WriteString(strings.Join(pairs, " "))
		builder.WriteString("]")
	}

	if e.wrapped != nil {
		var wrappedErr *CustomError
		if errors.As(e.wrapped, &wrappedErr) {
			builder.WriteString(", wrappedError: ")
			builder.WriteString(wrappedErr.fullErrorString())
		} else {
			builder.WriteString(fmt.Sprintf(", wrappedError: {%v}", e.wrapped.Error()))
		}
	}

	builder.WriteString("}")

	return builder.String()
}
