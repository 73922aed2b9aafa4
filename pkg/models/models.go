package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Phase names one of the three analysis stages
type Phase string

const (
	PhaseLexical   Phase = "lexical"
	PhaseSyntactic Phase = "syntactic"
	PhaseSemantic  Phase = "semantic"
)

// AllPhases lists the phases in display order
var AllPhases = []Phase{PhaseLexical, PhaseSyntactic, PhaseSemantic}

// ParsePhase accepts the English names and the backend's Spanish ones
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lexical", "lexico", "léxico":
		return PhaseLexical, nil
	case "syntactic", "sintactico", "sintáctico":
		return PhaseSyntactic, nil
	case "semantic", "semantico", "semántico":
		return PhaseSemantic, nil
	}
	return "", fmt.Errorf("unknown phase %q", s)
}

// Title returns a display label for the phase
func (p Phase) Title() string {
	switch p {
	case PhaseLexical:
		return "Lexical"
	case PhaseSyntactic:
		return "Syntactic"
	case PhaseSemantic:
		return "Semantic"
	}
	return string(p)
}

// AnalysisResult is the full /analyze response for one token
type AnalysisResult struct {
	Success   *bool           `json:"success,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	ErrorList Messages        `json:"errors,omitempty"`
	Header    map[string]any  `json:"header_decodificado"`
	Payload   map[string]any  `json:"payload_decodificado"`
	Tokens    []LexicalToken  `json:"tokens"`
	Alphabet  any             `json:"alfabeto,omitempty"`
	Errors    Messages        `json:"errores"`
	Warnings  Messages        `json:"advertencias"`
	Syntactic SyntacticResult `json:"sintactico"`
	Semantic  SemanticResult  `json:"semantico"`
}

// SyntacticResult is the nested structural grammar report
type SyntacticResult struct {
	Valid    *bool    `json:"valido,omitempty"`
	Tree     any      `json:"arbol_sintactico,omitempty"`
	Grammar  any      `json:"gramatica,omitempty"`
	Errors   Messages `json:"errores"`
	Warnings Messages `json:"advertencias"`
}

// SemanticResult is the nested claims report
type SemanticResult struct {
	Valid       *bool          `json:"valido,omitempty"`
	Validations any            `json:"validaciones,omitempty"`
	SymbolTable any            `json:"tabla_simbolos,omitempty"`
	Errors      Messages       `json:"errores"`
	Warnings    Messages       `json:"advertencias"`
	TimeClaims  TimeValidation `json:"validacion_tiempo"`
}

// TimeValidation covers exp/nbf/iat checks
type TimeValidation struct {
	Valid    *bool    `json:"valido,omitempty"`
	Errors   Messages `json:"errores"`
	Warnings Messages `json:"advertencias"`
}

// Summary is the short view of an analysis: subject, name and signature validity
type Summary struct {
	Subject        string
	Name           string
	ValidSignature *bool
}

// Summary extracts the headline fields from the decoded payload
func (r *AnalysisResult) Summary() Summary {
	if r == nil {
		return Summary{}
	}
	return Summary{
		Subject:        stringClaim(r.Payload, "sub"),
		Name:           stringClaim(r.Payload, "name"),
		ValidSignature: r.Syntactic.Valid,
	}
}

func stringClaim(claims map[string]any, key string) string {
	v, ok := claims[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// LexicalToken is one token produced by the backend lexer
type LexicalToken struct {
	Type     string `json:"tipo"`
	Value    string `json:"valor"`
	Position any    `json:"posicion,omitempty"`
}

// UnmarshalJSON accepts either an object or a bare string
func (t *LexicalToken) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = LexicalToken{Value: s}
		return nil
	}
	type plain LexicalToken
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("lexical token: %w", err)
	}
	*t = LexicalToken(p)
	return nil
}

// Messages is a list of error or warning texts
type Messages []string

// UnmarshalJSON normalises a single string, a list of strings, or a list of
// objects carrying "mensaje" or "message".
func (m *Messages) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*m = nil
		} else {
			*m = Messages{single}
		}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("messages: %w", err)
	}
	out := make(Messages, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil {
			out = append(out, string(item))
			continue
		}
		out = append(out, messageText(obj, item))
	}
	*m = out
	return nil
}

func messageText(obj map[string]any, raw json.RawMessage) string {
	for _, key := range []string{"mensaje", "message", "error", "detalle"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return string(raw)
}

// HistoryEntry is one example token served by /history
type HistoryEntry struct {
	Description string `json:"descripcion"`
	Token       string `json:"token"`
}

// JournalEntry records one classified outcome of the current process
type JournalEntry struct {
	RequestID   string
	TokenDigest string
	Operation   string
	Phase       Phase
	Category    string
	Severity    string
	Detail      string
	RecordedAt  time.Time
}
