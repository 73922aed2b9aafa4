// Package validator checks the shape of a raw JWT before it is sent anywhere.
package validator

import (
	"fmt"
	"strings"
)

// Reason identifies why a token was rejected
type Reason string

const (
	ReasonEmptyToken        Reason = "EMPTY_TOKEN"
	ReasonWrongSegmentCount Reason = "WRONG_SEGMENT_COUNT"
	ReasonEmptySegment      Reason = "EMPTY_SEGMENT"
	ReasonInvalidBase64URL  Reason = "INVALID_BASE64URL"
)

// Segment names the three parts of a token
type Segment string

const (
	SegmentHeader    Segment = "header"
	SegmentPayload   Segment = "payload"
	SegmentSignature Segment = "signature"
)

var segments = [3]Segment{SegmentHeader, SegmentPayload, SegmentSignature}

// ValidationError is a local, pre-network rejection
type ValidationError struct {
	Reason  Reason
	Segment Segment // empty for whole-token reasons
	Count   int     // number of segments found, for ReasonWrongSegmentCount
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonEmptyToken:
		return "token is empty"
	case ReasonWrongSegmentCount:
		return fmt.Sprintf("token must have 3 segments, found %d", e.Count)
	case ReasonEmptySegment:
		return fmt.Sprintf("%s segment is empty", e.Segment)
	case ReasonInvalidBase64URL:
		return fmt.Sprintf("%s segment contains characters outside the base64url alphabet", e.Segment)
	}
	return string(e.Reason)
}

// Validate checks token structure. Rules are applied in order and the first
// failure is returned.
func Validate(token string) error {
	if strings.TrimSpace(token) == "" {
		return &ValidationError{Reason: ReasonEmptyToken}
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return &ValidationError{Reason: ReasonWrongSegmentCount, Count: len(parts)}
	}

	for i, part := range parts {
		if part == "" {
			return &ValidationError{Reason: ReasonEmptySegment, Segment: segments[i]}
		}
	}

	for i, part := range parts {
		if !isBase64URL(part) {
			return &ValidationError{Reason: ReasonInvalidBase64URL, Segment: segments[i]}
		}
	}

	return nil
}

func isBase64URL(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
