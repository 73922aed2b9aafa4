package models

// PhaseResult is the per-phase slice of an AnalysisResult. The concrete
// types are LexicalPhase, SyntacticPhase and SemanticPhase.
type PhaseResult interface {
	Phase() Phase
	// Problems returns the error messages the phase reported
	Problems() Messages
	isPhaseResult()
}

// LexicalPhase is the decoding and tokenization view
type LexicalPhase struct {
	Header   map[string]any `json:"header_decodificado"`
	Payload  map[string]any `json:"payload_decodificado"`
	Tokens   []LexicalToken `json:"tokens"`
	Alphabet any            `json:"alfabeto,omitempty"`
	Errors   Messages       `json:"errores"`
	Warnings Messages       `json:"advertencias"`
}

// SyntacticPhase wraps the structural grammar report
type SyntacticPhase struct {
	SyntacticResult
}

// SemanticPhase wraps the claims report
type SemanticPhase struct {
	SemanticResult
}

func (LexicalPhase) Phase() Phase   { return PhaseLexical }
func (SyntacticPhase) Phase() Phase { return PhaseSyntactic }
func (SemanticPhase) Phase() Phase  { return PhaseSemantic }

func (p LexicalPhase) Problems() Messages   { return p.Errors }
func (p SyntacticPhase) Problems() Messages { return p.Errors }

func (p SemanticPhase) Problems() Messages {
	out := make(Messages, 0, len(p.Errors)+len(p.TimeClaims.Errors))
	out = append(out, p.Errors...)
	return append(out, p.TimeClaims.Errors...)
}

func (LexicalPhase) isPhaseResult()   {}
func (SyntacticPhase) isPhaseResult() {}
func (SemanticPhase) isPhaseResult()  {}

// Project derives the result for one phase from a full analysis. It returns
// nil for an unknown phase or a nil analysis.
func Project(r *AnalysisResult, phase Phase) PhaseResult {
	if r == nil {
		return nil
	}
	switch phase {
	case PhaseLexical:
		return LexicalPhase{
			Header:   r.Header,
			Payload:  r.Payload,
			Tokens:   nonNilTokens(r.Tokens),
			Alphabet: r.Alphabet,
			Errors:   r.Errors,
			Warnings: r.Warnings,
		}
	case PhaseSyntactic:
		return SyntacticPhase{SyntacticResult: r.Syntactic}
	case PhaseSemantic:
		return SemanticPhase{SemanticResult: r.Semantic}
	}
	return nil
}

// Placeholder returns an empty result for phase carrying msg as its only
// error, so a viewer always has something to render after a failed fetch.
func Placeholder(phase Phase, msg string) PhaseResult {
	var errs Messages
	if msg != "" {
		errs = Messages{msg}
	} else {
		errs = Messages{}
	}
	switch phase {
	case PhaseSyntactic:
		return SyntacticPhase{SyntacticResult: SyntacticResult{Errors: errs, Warnings: Messages{}}}
	case PhaseSemantic:
		return SemanticPhase{SemanticResult: SemanticResult{Errors: errs, Warnings: Messages{}}}
	default:
		return LexicalPhase{
			Header:   map[string]any{},
			Payload:  map[string]any{},
			Tokens:   []LexicalToken{},
			Errors:   errs,
			Warnings: Messages{},
		}
	}
}

func nonNilTokens(tokens []LexicalToken) []LexicalToken {
	if tokens == nil {
		return []LexicalToken{}
	}
	return tokens
}
