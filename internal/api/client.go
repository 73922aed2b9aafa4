// Package api is the typed HTTP boundary to the JWT analysis service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/strrl/jwt-lens/pkg/models"
)

const maxResponseBytes = 8 << 20

// Client talks to the analysis service. It keeps no state about tokens or
// results; callers interpret every response.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
	inflight   singleflight.Group
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for exchange tracing
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the service rooted at baseURL
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root this client sends requests to
func (c *Client) BaseURL() string { return c.baseURL }

type analyzeRequest struct {
	JWT string `json:"jwt"`
}

// Analyze requests the full lexical, syntactic and semantic report for token.
// Concurrent calls for the same token share one exchange. The shared
// exchange is bounded by the client timeout, not by any caller's context;
// a caller whose ctx ends stops waiting without failing the others.
func (c *Client) Analyze(ctx context.Context, token string) (*models.AnalysisResult, error) {
	ch := c.inflight.DoChan("analyze:"+token, func() (interface{}, error) {
		exchangeCtx, cancel := c.detach(ctx)
		defer cancel()

		body, err := c.do(exchangeCtx, "analyze", http.MethodPost, "/analyze", analyzeRequest{JWT: token}, schemaAnalyze)
		if err != nil {
			return nil, err
		}
		var result models.AnalysisResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, &ShapeError{Op: "analyze", Err: err}
		}
		return &result, nil
	})

	select {
	case <-ctx.Done():
		err := ctx.Err()
		return nil, &TransportError{Op: "analyze", Err: err, Timeout: isTimeout(err)}
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("analyze exchange shared with concurrent caller")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.AnalysisResult), nil
	}
}

// detach keeps ctx's values but not its cancellation, and applies the
// client timeout instead
func (c *Client) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		return context.WithTimeout(base, c.timeout)
	}
	return context.WithCancel(base)
}

// VerifyResult is the /verify-signature and /decode-verify response
type VerifyResult struct {
	Success        bool           `json:"success"`
	Error          string         `json:"error,omitempty"`
	ErrorCode      string         `json:"error_code,omitempty"`
	Header         map[string]any `json:"header,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	Signature      string         `json:"signature,omitempty"`
	Algorithm      string         `json:"algorithm,omitempty"`
	SignatureValid *bool          `json:"signature_valid,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
}

type verifyRequest struct {
	JWT    string `json:"jwt"`
	Secret string `json:"secret"`
}

// VerifySignature checks the token signature against secret
func (c *Client) VerifySignature(ctx context.Context, token, secret string) (*VerifyResult, error) {
	return c.verify(ctx, "verify-signature", "/verify-signature", verifyRequest{JWT: token, Secret: secret})
}

type decodeVerifyRequest struct {
	JWT    string `json:"jwt"`
	Secret string `json:"secret"`
	Verify bool   `json:"verify"`
}

// DecodeVerify decodes the token and, when secret is set, verifies it
func (c *Client) DecodeVerify(ctx context.Context, token, secret string) (*VerifyResult, error) {
	req := decodeVerifyRequest{JWT: token, Secret: secret, Verify: secret != ""}
	return c.verify(ctx, "decode-verify", "/decode-verify", req)
}

func (c *Client) verify(ctx context.Context, op, path string, payload any) (*VerifyResult, error) {
	body, err := c.do(ctx, op, http.MethodPost, path, payload, schemaVerify)
	if err != nil {
		return nil, err
	}
	var result VerifyResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ShapeError{Op: op, Err: err}
	}
	return &result, nil
}

// EncodeRequest is the /encode body
type EncodeRequest struct {
	Payload        json.RawMessage `json:"payload"`
	Secret         string          `json:"secret"`
	Algorithm      string          `json:"algorithm"`
	ValidateSecret bool            `json:"validate_secret"`
	UsePyJWT       bool            `json:"use_pyjwt"`
	ExpiresIn      int             `json:"expires_in,omitempty"`
}

// EncodeResult is the /encode response. Bare is set when the service
// answered with the token as a plain JSON string.
type EncodeResult struct {
	Success   bool     `json:"success"`
	JWT       string   `json:"jwt,omitempty"`
	Error     string   `json:"error,omitempty"`
	ErrorCode string   `json:"error_code,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Bare      bool     `json:"-"`
}

// Encode asks the service to sign payload. ExpiresIn is omitted when not
// positive; validate_secret and use_pyjwt are always sent as true.
func (c *Client) Encode(ctx context.Context, payload json.RawMessage, secret, algorithm string, expiresIn int) (*EncodeResult, error) {
	req := EncodeRequest{
		Payload:        payload,
		Secret:         secret,
		Algorithm:      algorithm,
		ValidateSecret: true,
		UsePyJWT:       true,
	}
	if expiresIn > 0 {
		req.ExpiresIn = expiresIn
	}

	body, err := c.do(ctx, "encode", http.MethodPost, "/encode", req, schemaEncode)
	if err != nil {
		return nil, err
	}

	var bare string
	if err := json.Unmarshal(body, &bare); err == nil {
		return &EncodeResult{Success: true, JWT: bare, Bare: true}, nil
	}
	var result EncodeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ShapeError{Op: "encode", Err: err}
	}
	return &result, nil
}

// HistoryResult is the /history response
type HistoryResult struct {
	Success bool                  `json:"success"`
	Data    []models.HistoryEntry `json:"data"`
}

// FetchHistory lists the example tokens kept by the service
func (c *Client) FetchHistory(ctx context.Context) (*HistoryResult, error) {
	body, err := c.do(ctx, "history", http.MethodGet, "/history", nil, schemaHistory)
	if err != nil {
		return nil, err
	}
	var result HistoryResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ShapeError{Op: "history", Err: err}
	}
	return &result, nil
}

type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// do performs one exchange and returns the body once it is known to match
// the named schema.
func (c *Client) do(ctx context.Context, op, method, path string, payload any, schema string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("exchange failed", zap.String("op", op), zap.Duration("latency", time.Since(start)), zap.Error(err))
		return nil, &TransportError{Op: op, Err: err, Timeout: isTimeout(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err), Timeout: isTimeout(err)}
	}

	c.logger.Debug("exchange",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.Int("bytes", len(body)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		terr := &TransportError{Op: op, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			terr.Message = eb.Error
			if terr.Message == "" {
				terr.Message = eb.Message
			}
			terr.Code = eb.ErrorCode
		}
		return nil, terr
	}

	if err := validateShape(body, schema); err != nil {
		return nil, &ShapeError{Op: op, Err: err}
	}
	return body, nil
}

func validateShape(body []byte, name string) error {
	schemas, err := responseSchemas()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return schemas[name].Validate(doc)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
