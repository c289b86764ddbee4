// Package errs classifies pipeline failures into machine-readable codes.
//
// Every code belongs to one of four categories: ingestion, retrieval,
// generation and configuration. Codes are dotted strings whose last
// segment is the reason, e.g. "generation.provider.timeout".
//
// Codes are attached with samber/oops. When an error is wrapped more than
// once the innermost code is reported, so the first classification wins.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeIngestionDocumentUnreadable Code = "ingestion.document.unreadable"
	CodeIngestionTypeUnsupported    Code = "ingestion.type.unsupported"
	CodeIngestionEmbeddingFailure   Code = "ingestion.embedding.failure"
	CodeIngestionIndexFailure       Code = "ingestion.index.failure"
	CodeIngestionManifestInvalid    Code = "ingestion.manifest.invalid"
	CodeIngestionLedgerFailure      Code = "ingestion.ledger.failure"

	CodeRetrievalIndexUnavailable Code = "retrieval.index.unavailable"
	CodeRetrievalIndexTimeout     Code = "retrieval.index.timeout"
	CodeRetrievalEmbeddingFailure Code = "retrieval.embedding.failure"
	CodeRetrievalEmbeddingTimeout Code = "retrieval.embedding.timeout"
	CodeRetrievalQueryInvalid     Code = "retrieval.query.invalid"

	CodeGenerationProviderTimeout   Code = "generation.provider.timeout"
	CodeGenerationProviderFailure   Code = "generation.provider.failure"
	CodeGenerationResponseMalformed Code = "generation.response.malformed"

	CodeConfigurationCredentialMissing   Code = "configuration.credential.missing"
	CodeConfigurationValueInvalid        Code = "configuration.value.invalid"
	CodeConfigurationProviderUnsupported Code = "configuration.provider.unsupported"
	CodeConfigurationProviderUnreachable Code = "configuration.provider.unreachable"
)

// Category is the first segment of a code.
type Category string

// Error categories.
const (
	CategoryIngestion     Category = "ingestion"
	CategoryRetrieval     Category = "retrieval"
	CategoryGeneration    Category = "generation"
	CategoryConfiguration Category = "configuration"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// FieldDocID tags an error with the document it concerns.
func FieldDocID(value string) Attr {
	return Field("doc_id", value)
}

// FieldProvider tags an error with the provider that produced it.
func FieldProvider(value string) Attr {
	return Field("provider", value)
}

// New creates a coded error.
func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

// Errorf creates a coded error with a formatted message. %w is honoured.
func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

// Wrap attaches a code and message to err. Returns nil for a nil err.
func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

// Wrapf attaches a code and formatted message to err. Returns nil for a nil err.
func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).Wrapf(err, format, args...)
}

// WrapProvider classifies a provider call failure. Deadline errors map to
// timeoutCode, everything else to failureCode.
func WrapProvider(err error, timeoutCode, failureCode Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, timeoutCode, msg, fields...)
	}
	return Wrap(err, failureCode, msg, fields...)
}

// CodeOf returns the innermost code attached to err, or "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	switch code := oopsErr.Code().(type) {
	case Code:
		return code
	case string:
		return Code(code)
	case nil:
		return ""
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

// FieldsOf returns the structured context attached to err.
func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

// HasCode reports whether err carries exactly code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// CategoryOf returns the category of the code attached to err, or "".
func CategoryOf(err error) Category {
	code := string(CodeOf(err))
	if code == "" {
		return ""
	}
	if i := strings.Index(code, "."); i > 0 {
		return Category(code[:i])
	}
	return Category(code)
}

// IsIngestion reports whether err is an ingestion failure.
func IsIngestion(err error) bool {
	return CategoryOf(err) == CategoryIngestion
}

// IsRetrieval reports whether err is a retrieval failure.
func IsRetrieval(err error) bool {
	return CategoryOf(err) == CategoryRetrieval
}

// IsGeneration reports whether err is a generation failure.
func IsGeneration(err error) bool {
	return CategoryOf(err) == CategoryGeneration
}

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool {
	return CategoryOf(err) == CategoryConfiguration
}

// IsTimeout reports whether err is a classified timeout.
func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

// IsInvalidInput reports whether err was caused by caller input.
func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "malformed"
}

// SafeMessage returns a caller-facing description of err that never
// includes provider responses, paths or credentials.
func SafeMessage(err error) string {
	if err == nil {
		return ""
	}
	if HasCode(err, CodeRetrievalQueryInvalid) {
		return "The question is empty or invalid."
	}
	switch CategoryOf(err) {
	case CategoryIngestion:
		return "The document could not be indexed."
	case CategoryRetrieval:
		if IsTimeout(err) {
			return "Searching the knowledge base timed out. Please try again."
		}
		return "The knowledge base could not be searched right now. Please try again."
	case CategoryGeneration:
		if IsTimeout(err) {
			return "Generating the answer timed out. Please try again."
		}
		return "The answer could not be generated right now. Please try again."
	case CategoryConfiguration:
		return "The service is not configured correctly. Contact an administrator."
	default:
		return "An internal error occurred."
	}
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsInvalidInput(err) && !IsGeneration(err):
		return http.StatusBadRequest
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsRetrieval(err), IsGeneration(err):
		return http.StatusBadGateway
	case IsConfiguration(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
