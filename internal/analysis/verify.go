package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strrl/jwt-lens/internal/api"
	"github.com/strrl/jwt-lens/internal/classify"
	"github.com/strrl/jwt-lens/internal/validator"
	"github.com/strrl/jwt-lens/pkg/models"
)

// SignatureClient is the part of the remote client signature checks use
type SignatureClient interface {
	VerifySignature(ctx context.Context, token, secret string) (*api.VerifyResult, error)
	DecodeVerify(ctx context.Context, token, secret string) (*api.VerifyResult, error)
}

// Verifier checks a token signature against a caller-supplied secret
type Verifier struct {
	client   SignatureClient
	notifier classify.Notifier
	recorder Recorder
	logger   *zap.Logger
}

// NewVerifier creates a verifier. notifier, recorder and logger may be nil.
func NewVerifier(client SignatureClient, notifier classify.Notifier, recorder Recorder, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{client: client, notifier: notifier, recorder: recorder, logger: logger}
}

// Verify validates the token shape, then checks the signature. Without a
// secret the token is only decoded and the result is reported as
// unverified.
func (v *Verifier) Verify(ctx context.Context, token, secret string) (classify.Notice, *api.VerifyResult) {
	token = strings.TrimSpace(token)
	secret = strings.TrimSpace(secret)

	if err := validator.Validate(token); err != nil {
		notice := classify.NoticeFor(classify.InvalidStructure, err.Error())
		classify.Deliver(v.notifier, notice)
		return notice, nil
	}

	var (
		res *api.VerifyResult
		err error
		op  = "verify-signature"
	)
	if secret == "" {
		op = "decode-verify"
		res, err = v.client.DecodeVerify(ctx, token, "")
	} else {
		res, err = v.client.VerifySignature(ctx, token, secret)
	}

	var notice classify.Notice
	switch {
	case err != nil:
		notice = classify.NoticeFor(signatureFailure(err), failureDetail(err))
	case !res.Success:
		berr := &api.BackendError{Op: op, Message: res.Error, Code: res.ErrorCode}
		notice = classify.NoticeFor(signatureFailure(berr), res.Error)
	case secret == "":
		notice = classify.NoticeFor(classify.Unverified)
	default:
		notice = classify.NoticeFor(classify.SignatureVerified)
	}

	v.logger.Info("signature check completed",
		zap.String("op", op),
		zap.String("category", string(notice.Category)))
	classify.Deliver(v.notifier, notice)
	v.record(ctx, token, op, notice)
	return notice, res
}

// signatureFailure classifies a failed check. A rejection the service did
// not explain (success=false, or a 4xx) is a signature mismatch; network
// and 5xx failures stay internal errors.
func signatureFailure(err error) classify.Category {
	c := classify.Failure(err)
	if c != classify.InternalError {
		return c
	}
	var terr *api.TransportError
	if !errors.As(err, &terr) {
		return classify.SignatureMismatch
	}
	if terr.StatusCode >= 400 && terr.StatusCode < 500 {
		return classify.SignatureMismatch
	}
	return c
}

func (v *Verifier) record(ctx context.Context, token, op string, notice classify.Notice) {
	if v.recorder == nil {
		return
	}
	entry := models.JournalEntry{
		RequestID:   uuid.New().String(),
		TokenDigest: Digest(token),
		Operation:   op,
		Category:    string(notice.Category),
		Severity:    notice.Severity.String(),
		Detail:      notice.Detail,
		RecordedAt:  time.Now(),
	}
	if err := v.recorder.Record(ctx, entry); err != nil {
		v.logger.Warn("failed to journal signature check", zap.Error(err))
	}
}
