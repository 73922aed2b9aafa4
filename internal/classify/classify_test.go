package classify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strrl/jwt-lens/internal/api"
	"github.com/strrl/jwt-lens/internal/validator"
	"github.com/strrl/jwt-lens/pkg/models"
)

func boolPtr(b bool) *bool { return &b }

func TestResponsePriority(t *testing.T) {
	tests := []struct {
		name string
		in   models.AnalysisResult
		want Category
	}{
		{
			name: "explicit failure with message",
			in:   models.AnalysisResult{Success: boolPtr(false), Error: "token corrupto", Errors: models.Messages{"JSON inválido"}},
			want: BackendFailure,
		},
		{
			name: "explicit failure with error list",
			in:   models.AnalysisResult{Success: boolPtr(false), ErrorList: models.Messages{"fallo"}},
			want: BackendFailure,
		},
		{
			name: "success false without any message falls through",
			in:   models.AnalysisResult{Success: boolPtr(false), Errors: models.Messages{"JSON inválido"}},
			want: LexicalError,
		},
		{
			name: "lexical beats semantic",
			in: models.AnalysisResult{
				Errors:   models.Messages{"carácter inválido"},
				Semantic: models.SemanticResult{Errors: models.Messages{"sub vacío"}},
			},
			want: LexicalError,
		},
		{
			name: "syntactic",
			in: models.AnalysisResult{
				Syntactic: models.SyntacticResult{Errors: models.Messages{"falta typ"}},
				Semantic:  models.SemanticResult{Errors: models.Messages{"sub vacío"}},
			},
			want: SyntacticError,
		},
		{
			name: "semantic beats time claims",
			in: models.AnalysisResult{Semantic: models.SemanticResult{
				Errors:     models.Messages{"sub vacío"},
				TimeClaims: models.TimeValidation{Errors: models.Messages{"exp vencido"}},
			}},
			want: SemanticError,
		},
		{
			name: "time claims",
			in: models.AnalysisResult{Semantic: models.SemanticResult{
				TimeClaims: models.TimeValidation{Errors: models.Messages{"exp vencido"}},
			}},
			want: TimeClaimError,
		},
		{
			name: "warnings alone are valid",
			in:   models.AnalysisResult{Warnings: models.Messages{"alg débil"}, Success: boolPtr(true)},
			want: Valid,
		},
		{
			name: "empty lists are valid",
			in:   models.AnalysisResult{Errors: models.Messages{}},
			want: Valid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.in
			assert.Equal(t, tt.want, Response(&r))
		})
	}
}

func TestResponseNil(t *testing.T) {
	assert.Equal(t, UnexpectedResponse, Response(nil))
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, SeverityError, BackendFailure.Severity())
	assert.Equal(t, SeverityError, LexicalError.Severity())
	assert.Equal(t, SeverityError, SyntacticError.Severity())
	assert.Equal(t, SeverityWarning, SemanticError.Severity())
	assert.Equal(t, SeverityWarning, TimeClaimError.Severity())
	assert.Equal(t, SeveritySuccess, Valid.Severity())
	assert.Equal(t, SeverityError, InternalError.Severity())
	assert.Equal(t, SeveritySuccess, SignatureVerified.Severity())
	assert.Equal(t, SeverityWarning, Unverified.Severity())
}

func TestFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"json message", &api.TransportError{Op: "analyze", StatusCode: 400, Message: "JSON inválido en header"}, MalformedToken},
		{"base64 message", &api.TransportError{Op: "analyze", StatusCode: 400, Message: "Error decodificando base64"}, InvalidEncoding},
		{"signature message", &api.TransportError{Op: "verify-signature", StatusCode: 401, Message: "Firma inválida"}, SignatureMismatch},
		{"time claim message", &api.TransportError{Op: "analyze", StatusCode: 400, Message: "exp debe ser un entero"}, MalformedTimeClaim},
		{"unknown message", &api.TransportError{Op: "analyze", StatusCode: 500, Message: "kaboom"}, InternalError},
		{"no response", &api.TransportError{Op: "analyze", Err: errors.New("connection refused")}, InternalError},
		{"code wins over message", &api.TransportError{Op: "analyze", StatusCode: 400, Code: "invalid_signature", Message: "JSON inválido"}, SignatureMismatch},
		{"unknown code falls back to message", &api.TransportError{Op: "analyze", StatusCode: 400, Code: "E42", Message: "base64 roto"}, InvalidEncoding},
		{"backend error", &api.BackendError{Op: "encode", Message: "Firma inválida"}, SignatureMismatch},
		{"shape", &api.ShapeError{Op: "analyze", Err: errors.New("missing fields")}, UnexpectedResponse},
		{"wrapped shape", fmt.Errorf("fetch: %w", &api.ShapeError{Op: "analyze", Err: errors.New("x")}), UnexpectedResponse},
		{"validation", &validator.ValidationError{Reason: validator.ReasonEmptyToken}, InvalidStructure},
		{"plain error", errors.New("something JSON-ish"), MalformedToken},
		{"nil", nil, Valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Failure(tt.err))
		})
	}
}

func TestEvidence(t *testing.T) {
	r := &models.AnalysisResult{
		Success:   boolPtr(false),
		Error:     "falló",
		ErrorList: models.Messages{"uno"},
		Errors:    models.Messages{"lex"},
		Syntactic: models.SyntacticResult{Errors: models.Messages{"syn"}},
		Semantic: models.SemanticResult{
			Errors:     models.Messages{"sem"},
			TimeClaims: models.TimeValidation{Errors: models.Messages{"exp"}},
		},
	}
	assert.Equal(t, []string{"falló", "uno"}, Evidence(BackendFailure, r))
	assert.Equal(t, []string{"lex"}, Evidence(LexicalError, r))
	assert.Equal(t, []string{"syn"}, Evidence(SyntacticError, r))
	assert.Equal(t, []string{"sem"}, Evidence(SemanticError, r))
	assert.Equal(t, []string{"exp"}, Evidence(TimeClaimError, r))
	assert.Nil(t, Evidence(Valid, r))
	assert.Nil(t, Evidence(LexicalError, nil))
}

type recordingNotifier struct {
	calls []string
}

func (r *recordingNotifier) NotifyError(title, detail string) {
	r.calls = append(r.calls, "error:"+title)
}

func (r *recordingNotifier) NotifySuccess(title, detail string) {
	r.calls = append(r.calls, "success:"+title)
}

func (r *recordingNotifier) NotifyWarning(title, detail string) {
	r.calls = append(r.calls, "warning:"+title)
}

func TestDeliverRoutesBySeverity(t *testing.T) {
	n := &recordingNotifier{}
	Deliver(n, NoticeFor(LexicalError))
	Deliver(n, NoticeFor(SemanticError))
	Deliver(n, NoticeFor(TimeClaimError))
	Deliver(n, NoticeFor(Valid))

	assert.Equal(t, []string{
		"error:Lexical errors",
		"warning:Semantic warnings",
		"warning:Time claim warnings",
		"success:Valid token",
	}, n.calls)

	// nil notifier is a no-op
	Deliver(nil, NoticeFor(Valid))
}

func TestNoticeForEveryCategoryHasDistinctTitle(t *testing.T) {
	all := []Category{
		BackendFailure, LexicalError, SyntacticError, SemanticError, TimeClaimError, Valid,
		MalformedToken, InvalidEncoding, SignatureMismatch, MalformedTimeClaim,
		UnexpectedResponse, InvalidStructure, InternalError, SignatureVerified, Unverified,
	}
	seen := map[string]Category{}
	for _, c := range all {
		n := NoticeFor(c)
		assert.NotEmpty(t, n.Title, c)
		if prev, dup := seen[n.Title]; dup {
			t.Errorf("categories %s and %s share title %q", prev, c, n.Title)
		}
		seen[n.Title] = c
	}
}

func TestNoticeForAppendsEvidence(t *testing.T) {
	n := NoticeFor(LexicalError, "JSON inválido", " ", "carácter raro")
	assert.Contains(t, n.Detail, "JSON inválido; carácter raro")
	assert.Equal(t, SeverityError, n.Severity)
	assert.Equal(t, LexicalError, n.Category)
}
