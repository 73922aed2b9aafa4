// Package classify maps analysis responses and failures onto the small set
// of outcomes shown to the user.
package classify

import (
	"errors"
	"strings"

	"github.com/strrl/jwt-lens/internal/api"
	"github.com/strrl/jwt-lens/internal/validator"
	"github.com/strrl/jwt-lens/pkg/models"
)

// Category is the user-facing outcome of an exchange
type Category string

// Response categories, in priority order
const (
	BackendFailure Category = "BACKEND_FAILURE"
	LexicalError   Category = "LEXICAL_ERROR"
	SyntacticError Category = "SYNTACTIC_ERROR"
	SemanticError  Category = "SEMANTIC_ERROR"
	TimeClaimError Category = "TIME_CLAIM_ERROR"
	Valid          Category = "VALID"
)

// Failure categories, used when no usable response was received
const (
	MalformedToken     Category = "MALFORMED_TOKEN"
	InvalidEncoding    Category = "INVALID_ENCODING"
	SignatureMismatch  Category = "SIGNATURE_MISMATCH"
	MalformedTimeClaim Category = "MALFORMED_TIME_CLAIM"
	UnexpectedResponse Category = "UNEXPECTED_RESPONSE"
	InvalidStructure   Category = "INVALID_STRUCTURE"
	InternalError      Category = "INTERNAL_ERROR"
)

// Signature check outcomes
const (
	SignatureVerified Category = "SIGNATURE_VERIFIED"
	Unverified        Category = "UNVERIFIED"
)

// Severity decides which notifier channel a category uses
type Severity int

const (
	SeveritySuccess Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	}
	return "error"
}

// Severity of the category. Semantic and time-claim findings are warnings,
// not hard failures.
func (c Category) Severity() Severity {
	switch c {
	case Valid, SignatureVerified:
		return SeveritySuccess
	case SemanticError, TimeClaimError, Unverified:
		return SeverityWarning
	}
	return SeverityError
}

// Response classifies a successfully received analysis
func Response(r *models.AnalysisResult) Category {
	if r == nil {
		return UnexpectedResponse
	}
	if r.Success != nil && !*r.Success && (r.Error != "" || len(r.ErrorList) > 0) {
		return BackendFailure
	}
	if len(r.Errors) > 0 {
		return LexicalError
	}
	if len(r.Syntactic.Errors) > 0 {
		return SyntacticError
	}
	if len(r.Semantic.Errors) > 0 {
		return SemanticError
	}
	if len(r.Semantic.TimeClaims.Errors) > 0 {
		return TimeClaimError
	}
	return Valid
}

// Evidence returns the messages from r that put it in category c
func Evidence(c Category, r *models.AnalysisResult) []string {
	if r == nil {
		return nil
	}
	switch c {
	case BackendFailure:
		out := []string(nil)
		if r.Error != "" {
			out = append(out, r.Error)
		}
		return append(out, r.ErrorList...)
	case LexicalError:
		return r.Errors
	case SyntacticError:
		return r.Syntactic.Errors
	case SemanticError:
		return r.Semantic.Errors
	case TimeClaimError:
		return r.Semantic.TimeClaims.Errors
	}
	return nil
}

// structured error codes the service may send in "error_code"
var codeCategories = map[string]Category{
	"MALFORMED_TOKEN":      MalformedToken,
	"INVALID_JSON":         MalformedToken,
	"INVALID_ENCODING":     InvalidEncoding,
	"INVALID_BASE64":       InvalidEncoding,
	"SIGNATURE_MISMATCH":   SignatureMismatch,
	"INVALID_SIGNATURE":    SignatureMismatch,
	"MALFORMED_TIME_CLAIM": MalformedTimeClaim,
	"INVALID_TIME_CLAIM":   MalformedTimeClaim,
}

// legacy message fragments, checked in order, for services that only send
// free text
var messageFragments = []struct {
	fragment string
	category Category
}{
	{"JSON", MalformedToken},
	{"base64", InvalidEncoding},
	{"Firma inválida", SignatureMismatch},
	{"entero", MalformedTimeClaim},
}

// Failure classifies an error returned instead of a response. A structured
// code wins; message substrings are the fallback.
func Failure(err error) Category {
	if err == nil {
		return Valid
	}

	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		return InvalidStructure
	}

	var serr *api.ShapeError
	if errors.As(err, &serr) {
		return UnexpectedResponse
	}

	code, msg := errorCodeAndMessage(err)
	if c, ok := FromCode(code); ok {
		return c
	}
	return FromMessage(msg)
}

// FromCode maps a structured backend error code
func FromCode(code string) (Category, bool) {
	if code == "" {
		return "", false
	}
	c, ok := codeCategories[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// FromMessage applies the substring fallback to free text
func FromMessage(msg string) Category {
	for _, f := range messageFragments {
		if strings.Contains(msg, f.fragment) {
			return f.category
		}
	}
	return InternalError
}

func errorCodeAndMessage(err error) (string, string) {
	var terr *api.TransportError
	if errors.As(err, &terr) {
		return terr.Code, terr.Detail()
	}
	var berr *api.BackendError
	if errors.As(err, &berr) {
		return berr.Code, berr.Message
	}
	return "", err.Error()
}
