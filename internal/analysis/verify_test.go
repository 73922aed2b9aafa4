package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strrl/jwt-lens/internal/api"
	"github.com/strrl/jwt-lens/internal/classify"
)

type fakeSignatureClient struct {
	verifyCalls int
	decodeCalls int
	secret      string
	result      *api.VerifyResult
	err         error
}

func (f *fakeSignatureClient) VerifySignature(ctx context.Context, token, secret string) (*api.VerifyResult, error) {
	f.verifyCalls++
	f.secret = secret
	return f.result, f.err
}

func (f *fakeSignatureClient) DecodeVerify(ctx context.Context, token, secret string) (*api.VerifyResult, error) {
	f.decodeCalls++
	f.secret = secret
	return f.result, f.err
}

func TestVerify(t *testing.T) {
	valid := true
	tests := []struct {
		name       string
		token      string
		secret     string
		result     *api.VerifyResult
		err        error
		want       classify.Category
		wantVerify int
		wantDecode int
	}{
		{
			name:   "invalid structure skips the call",
			token:  "abc.def",
			secret: "s",
			want:   classify.InvalidStructure,
		},
		{
			name:       "matching secret",
			token:      testToken,
			secret:     " secret ",
			result:     &api.VerifyResult{Success: true, SignatureValid: &valid},
			want:       classify.SignatureVerified,
			wantVerify: 1,
		},
		{
			name:       "no secret only decodes",
			token:      testToken,
			result:     &api.VerifyResult{Success: true},
			want:       classify.Unverified,
			wantDecode: 1,
		},
		{
			name:       "rejection with legacy message",
			token:      testToken,
			secret:     "wrong",
			result:     &api.VerifyResult{Success: false, Error: "Firma inválida"},
			want:       classify.SignatureMismatch,
			wantVerify: 1,
		},
		{
			name:       "unexplained rejection",
			token:      testToken,
			secret:     "wrong",
			result:     &api.VerifyResult{Success: false},
			want:       classify.SignatureMismatch,
			wantVerify: 1,
		},
		{
			name:       "structured code wins",
			token:      testToken,
			secret:     "wrong",
			err:        &api.TransportError{Op: "verify-signature", StatusCode: 400, Code: "INVALID_BASE64", Message: "Firma inválida"},
			want:       classify.InvalidEncoding,
			wantVerify: 1,
		},
		{
			name:       "client error without detail",
			token:      testToken,
			secret:     "wrong",
			err:        &api.TransportError{Op: "verify-signature", StatusCode: 401},
			want:       classify.SignatureMismatch,
			wantVerify: 1,
		},
		{
			name:       "server error",
			token:      testToken,
			secret:     "s",
			err:        &api.TransportError{Op: "verify-signature", StatusCode: 503},
			want:       classify.InternalError,
			wantVerify: 1,
		},
		{
			name:       "network error",
			token:      testToken,
			secret:     "s",
			err:        &api.TransportError{Op: "verify-signature", Err: errors.New("connection refused")},
			want:       classify.InternalError,
			wantVerify: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeSignatureClient{result: tt.result, err: tt.err}
			n := &fakeNotifier{}
			rec := &fakeRecorder{}
			v := NewVerifier(client, n, rec, nil)

			notice, _ := v.Verify(context.Background(), tt.token, tt.secret)

			assert.Equal(t, tt.want, notice.Category)
			assert.Equal(t, tt.wantVerify, client.verifyCalls)
			assert.Equal(t, tt.wantDecode, client.decodeCalls)
			require.Len(t, n.notices, 1)
			assert.Equal(t, tt.want.Severity().String(), n.notices[0].severity)

			if tt.wantVerify+tt.wantDecode == 0 {
				assert.Empty(t, rec.entries)
				return
			}
			require.Len(t, rec.entries, 1)
			assert.Equal(t, string(tt.want), rec.entries[0].Category)
		})
	}
}

func TestVerifyTrimsSecret(t *testing.T) {
	client := &fakeSignatureClient{result: &api.VerifyResult{Success: true}}
	v := NewVerifier(client, nil, nil, nil)

	v.Verify(context.Background(), "  "+testToken+"  ", "\tsecret\n")
	assert.Equal(t, "secret", client.secret)
}
