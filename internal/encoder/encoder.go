// Package encoder drives the token generation form: it checks the payload
// and secret locally, asks the service to sign, and exposes the outcome.
package encoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/strrl/jwt-lens/internal/api"
	"github.com/strrl/jwt-lens/internal/config"
)

var (
	ErrInvalidPayloadJSON      = errors.New("payload is not valid JSON")
	ErrMissingSecret           = errors.New("secret is required")
	ErrUnsupportedAlgorithm    = errors.New("unsupported algorithm")
	ErrUnexpectedResponseShape = errors.New("service did not return a token")
	ErrNothingToCopy           = errors.New("no token has been generated")
)

// EncodeError is a failed exchange with the service. The cause is kept for
// logs; users see a generic message.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string { return "failed to generate token" }

func (e *EncodeError) Unwrap() error { return e.Err }

// Encoder is the part of the remote client the workflow needs
type Encoder interface {
	Encode(ctx context.Context, payload json.RawMessage, secret, algorithm string, expiresIn int) (*api.EncodeResult, error)
}

// ClipboardWriter receives generated tokens
type ClipboardWriter interface {
	WriteAll(text string) error
}

// Form is the user-editable input
type Form struct {
	Payload   string
	Secret    string
	Algorithm string
	// ExpiresIn is in seconds; zero means no expiration
	ExpiresIn int
}

// Job is one validated generate call
type Job struct {
	generation int
	payload    json.RawMessage
	secret     string
	algorithm  string
	expiresIn  int
}

// Workflow holds the form and its result signals. It is not safe for
// concurrent use; the owner serialises access.
type Workflow struct {
	client   Encoder
	logger   *zap.Logger
	defaults Form

	Form Form

	loading    bool
	err        error
	token      string
	warnings   []string
	generation int
}

// New creates a workflow whose form starts at defaults. Empty default
// fields fall back to the built-in template and HS256.
func New(client Encoder, defaults Form, logger *zap.Logger) *Workflow {
	if defaults.Payload == "" {
		defaults.Payload = config.DefaultPayload
	}
	if defaults.Algorithm == "" {
		defaults.Algorithm = config.DefaultAlgorithm
	}
	defaults.Secret = ""
	defaults.ExpiresIn = 0
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		client:   client,
		logger:   logger,
		defaults: defaults,
		Form:     defaults,
	}
}

// Begin validates the form and marks the workflow loading. No call is made
// when validation fails.
func (w *Workflow) Begin() (*Job, error) {
	w.err = nil
	w.token = ""
	w.warnings = nil

	if !json.Valid([]byte(strings.TrimSpace(w.Form.Payload))) {
		w.err = ErrInvalidPayloadJSON
		return nil, w.err
	}
	secret := strings.TrimSpace(w.Form.Secret)
	if secret == "" {
		w.err = ErrMissingSecret
		return nil, w.err
	}
	alg := strings.ToUpper(strings.TrimSpace(w.Form.Algorithm))
	if alg == "" {
		alg = config.DefaultAlgorithm
	}
	if !config.IsSupportedAlgorithm(alg) {
		w.err = fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
		return nil, w.err
	}

	w.generation++
	w.loading = true
	return &Job{
		generation: w.generation,
		payload:    json.RawMessage(strings.TrimSpace(w.Form.Payload)),
		secret:     secret,
		algorithm:  alg,
		expiresIn:  w.Form.ExpiresIn,
	}, nil
}

// Run performs the network call for job without touching workflow state
func (w *Workflow) Run(ctx context.Context, job *Job) (*api.EncodeResult, error) {
	return w.client.Encode(ctx, job.payload, job.secret, job.algorithm, job.expiresIn)
}

// Complete applies the outcome of job. Results for a job superseded by a
// later Begin or ClearForm are dropped and false is returned.
func (w *Workflow) Complete(job *Job, res *api.EncodeResult, err error) bool {
	if job == nil || job.generation != w.generation || !w.loading {
		return false
	}
	w.loading = false

	switch {
	case err != nil:
		w.err = &EncodeError{Err: err}
	case res == nil:
		w.err = ErrUnexpectedResponseShape
	case !res.Success:
		msg := res.Error
		if msg == "" {
			msg = "backend rejected the payload"
		}
		w.err = &api.BackendError{Op: "encode", Message: msg, Code: res.ErrorCode}
	case res.JWT == "":
		w.err = ErrUnexpectedResponseShape
	default:
		w.token = res.JWT
		w.warnings = res.Warnings
	}

	if w.err != nil {
		w.logger.Warn("token generation failed", zap.String("algorithm", job.algorithm), zap.Error(w.underlying()))
		return true
	}
	w.logger.Info("token generated",
		zap.String("algorithm", job.algorithm),
		zap.Int("expires_in", job.expiresIn),
		zap.Bool("bare", res.Bare))
	return true
}

func (w *Workflow) underlying() error {
	var eerr *EncodeError
	if errors.As(w.err, &eerr) {
		return eerr.Err
	}
	return w.err
}

// Generate runs Begin, Run and Complete in sequence and returns the token
func (w *Workflow) Generate(ctx context.Context) (string, error) {
	job, err := w.Begin()
	if err != nil {
		return "", err
	}
	res, err := w.Run(ctx, job)
	w.Complete(job, res, err)
	return w.token, w.err
}

// ClearForm restores the defaults and clears every signal. A generate call
// still in flight is ignored when it returns.
func (w *Workflow) ClearForm() {
	w.Form = w.defaults
	w.loading = false
	w.err = nil
	w.token = ""
	w.warnings = nil
	w.generation++
}

// Copy writes the generated token to cb
func (w *Workflow) Copy(cb ClipboardWriter) error {
	if w.token == "" {
		return ErrNothingToCopy
	}
	return cb.WriteAll(w.token)
}

func (w *Workflow) Loading() bool      { return w.loading }
func (w *Workflow) Err() error         { return w.err }
func (w *Workflow) Token() string      { return w.token }
func (w *Workflow) Warnings() []string { return w.warnings }

// ErrorText is the message shown under the form. Backend rejections show
// the service's own text.
func (w *Workflow) ErrorText() string {
	if w.err == nil {
		return ""
	}
	var berr *api.BackendError
	if errors.As(w.err, &berr) {
		return berr.Message
	}
	return w.err.Error()
}
