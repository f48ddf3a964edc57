package markdown

import (
	"errors"
	"fmt"
)

// Kind classifies why a document failed to compile.
type Kind int

const (
	// KindAuthoring covers unknown directives, malformed image destinations
	// and stream events with no rendering rule.
	KindAuthoring Kind = iota + 1
	// KindNetwork covers failed image, oembed and thumbnail requests.
	KindNetwork
	// KindMetadata covers malformed metadata values such as dates.
	KindMetadata
)

func (k Kind) String() string {
	switch k {
	case KindAuthoring:
		return "authoring"
	case KindNetwork:
		return "network"
	case KindMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// Error is the error type returned by the compiler. All kinds are fatal
// to the document being compiled and to nothing else.
type Error struct {
	Kind    Kind
	Doc     string // file or page the error belongs to, when known
	Context string // offending reference, directive or value
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Doc != "" {
		msg += " in " + e.Doc
	}
	if e.Context != "" {
		msg += fmt.Sprintf(" (%s)", e.Context)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// WithDoc attaches a document name to err if it is an *Error without one.
func WithDoc(err error, doc string) error {
	var e *Error
	if errors.As(err, &e) && e.Doc == "" {
		e.Doc = doc
	}
	return err
}

func authoringf(context, format string, args ...any) error {
	return &Error{Kind: KindAuthoring, Context: context, Err: fmt.Errorf(format, args...)}
}

func networkErr(context string, err error) error {
	return &Error{Kind: KindNetwork, Context: context, Err: err}
}

func metadataErr(context string, err error) error {
	return &Error{Kind: KindMetadata, Context: context, Err: err}
}
