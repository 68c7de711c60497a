package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/KalilovM/topshopes-backend/api/responses"
	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
)

const (
	PaymentSignatureHeader = "X-Payment-Signature"
	maxWebhookBodyBytes    = 64 << 10
)

// PaymentSignature admits gateway callbacks whose body carries a valid
// HMAC-SHA256 signature (hex, optionally prefixed with "sha256=").
func PaymentSignature(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "payment webhook secret not configured"))
				return
			}

			provided := strings.TrimPrefix(strings.TrimSpace(r.Header.Get(PaymentSignatureHeader)), "sha256=")
			if provided == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing signature"))
				return
			}
			signature, err := hex.DecodeString(provided)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "malformed signature"))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			if !hmac.Equal(signature, SignPayload(secret, body)) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid signature"))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// SignPayload returns the raw HMAC-SHA256 of body under secret.
func SignPayload(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
