// Package errs defines the error taxonomy shared by the ingestion and query pipelines.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind string

const (
	KindConfiguration      Kind = "configuration"
	KindExtractionFailed   Kind = "extraction_failed"
	KindNoTextContent      Kind = "no_text_content"
	KindEmbeddingProvider  Kind = "embedding_provider"
	KindCompletionProvider Kind = "completion_provider"
	KindPersistence        Kind = "persistence"
	KindMissingTable       Kind = "missing_table"
	KindNotFound           Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
)

// Sentinels for errors.Is comparisons. An *Error matches the sentinel of its Kind.
var (
	ConfigurationError      = &Error{Kind: KindConfiguration}
	ExtractionFailed        = &Error{Kind: KindExtractionFailed}
	NoTextContent           = &Error{Kind: KindNoTextContent}
	EmbeddingProviderError  = &Error{Kind: KindEmbeddingProvider}
	CompletionProviderError = &Error{Kind: KindCompletionProvider}
	PersistenceError        = &Error{Kind: KindPersistence}
	MissingTableTolerated   = &Error{Kind: KindMissingTable}
	NotFound                = &Error{Kind: KindNotFound}
	InvalidInput            = &Error{Kind: KindInvalidInput}
)

// Error is a classified error. Op names the failing operation ("chunker.new", "storage.replace_chunks").
type Error struct {
	Kind      Kind
	Op        string
	Msg       string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(string(e.Kind))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns a classified error with a message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Provider wraps an external provider failure, marking it retryable when retry is true.
func Provider(kind Kind, op string, err error, retry bool) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err, Retryable: retry}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may retry the request.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsMissingTable recognizes an absent-schema signal from a backing store.
func IsMissingTable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, MissingTableTolerated) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "does not exist")
}

// HTTPStatus maps an error to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNoTextContent, KindInvalidInput, KindExtractionFailed:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindEmbeddingProvider, KindCompletionProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text of err: the bare message of a classified
// error without its op prefix, or err.Error() otherwise.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" && e.Err == nil {
		return e.Msg
	}
	return err.Error()
}
