package webhooks

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-fliggy/core"
)

// Verifier checks the partner signature over a decoded push payload.
type Verifier interface {
	Verify(ctx context.Context, payload map[string]any) error
}

// SignatureVerifier reconstructs the values-only canonical string and checks
// the RSA signature with the configured signer. It fails closed: a missing
// signature, a missing public key, or a mismatch all reject the push.
type SignatureVerifier struct {
	Signer core.RequestSigner
	Logger core.Logger
}

func NewSignatureVerifier(signer core.RequestSigner, logger core.Logger) *SignatureVerifier {
	return &SignatureVerifier{Signer: signer, Logger: logger}
}

func (v *SignatureVerifier) Verify(_ context.Context, payload map[string]any) error {
	if v == nil || v.Signer == nil {
		return rejectedError("webhooks: no signer configured, failing closed")
	}

	signature, _ := payload[core.SignatureField].(string)
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return rejectedError("webhooks: push has no signature")
	}

	canonical, err := core.BuildWebhookSigningString(payload)
	if err != nil {
		return rejectedError(fmt.Sprintf("webhooks: canonicalize push: %s", err.Error()))
	}
	if !v.Signer.Verify([]byte(canonical), signature) {
		if v.Logger != nil {
			v.Logger.Warn("push signature rejected", "canonical_len", len(canonical))
		}
		return rejectedError("webhooks: push signature verification failed")
	}
	return nil
}

func rejectedError(message string) error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(core.ClientErrorWebhookRejected)
}

var _ Verifier = (*SignatureVerifier)(nil)
