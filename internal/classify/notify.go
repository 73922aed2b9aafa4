package classify

import "strings"

// Notifier presents outcomes to the user
type Notifier interface {
	NotifyError(title, detail string)
	NotifySuccess(title, detail string)
	NotifyWarning(title, detail string)
}

// Notice is the presentation of one category
type Notice struct {
	Category Category
	Severity Severity
	Title    string
	Detail   string
}

type noticeText struct {
	title string
	body  string
}

var noticeTexts = map[Category]noticeText{
	BackendFailure:     {"Analysis failed", "The analysis service could not process the token."},
	LexicalError:       {"Lexical errors", "The token could not be tokenized or decoded."},
	SyntacticError:     {"Syntactic errors", "The token structure does not follow the JWT grammar."},
	SemanticError:      {"Semantic warnings", "The claims have semantic problems."},
	TimeClaimError:     {"Time claim warnings", "One or more time claims (exp, nbf, iat) failed validation."},
	Valid:              {"Valid token", "All lexical, syntactic and semantic checks passed."},
	MalformedToken:     {"Malformed token", "A segment does not decode to valid JSON."},
	InvalidEncoding:    {"Invalid encoding", "A segment is not valid base64url."},
	SignatureMismatch:  {"Invalid signature", "The signature does not match the secret."},
	MalformedTimeClaim: {"Malformed time claim", "A time claim is not an integer timestamp."},
	UnexpectedResponse: {"Unexpected response", "The service answered with an unrecognised shape."},
	InvalidStructure:   {"Invalid token", "The token is not three base64url segments separated by dots."},
	InternalError:      {"Service error", "The request to the analysis service failed."},
	SignatureVerified:  {"Valid signature", "The signature matches the secret."},
	Unverified:         {"Signature not checked", "No secret was supplied, so the token was only decoded."},
}

// NoticeFor builds the notice for category. extra holds the messages that
// triggered it and is appended to the category body.
func NoticeFor(c Category, extra ...string) Notice {
	text, ok := noticeTexts[c]
	if !ok {
		text = noticeTexts[InternalError]
	}
	detail := text.body
	var parts []string
	for _, e := range extra {
		if e = strings.TrimSpace(e); e != "" {
			parts = append(parts, e)
		}
	}
	if len(parts) > 0 {
		detail += " " + strings.Join(parts, "; ")
	}
	return Notice{
		Category: c,
		Severity: c.Severity(),
		Title:    text.title,
		Detail:   detail,
	}
}

// Deliver sends the notice to the matching notifier channel
func Deliver(n Notifier, notice Notice) {
	if n == nil {
		return
	}
	switch notice.Severity {
	case SeveritySuccess:
		n.NotifySuccess(notice.Title, notice.Detail)
	case SeverityWarning:
		n.NotifyWarning(notice.Title, notice.Detail)
	default:
		n.NotifyError(notice.Title, notice.Detail)
	}
}
