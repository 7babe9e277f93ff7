package handler

import (
	"context"
	"go-bankaccount-api/common"
	"go-bankaccount-api/logger"
	"go-bankaccount-api/model"
	"go-bankaccount-api/service"
	"net/http"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// BasicAuthMiddleware authenticates every request with HTTP Basic credentials
// and stores the resolved principal in the request context. Verification is
// delegated to the injected CredentialVerifier.
func BasicAuthMiddleware(verifier service.CredentialVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				unauthorized(w)
				return
			}

			principal, err := verifier.Verify(username, password)
			if err != nil {
				logger.Log.WithField("username", username).Warn("Basic auth verification failed")
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="bankaccounts"`)
	err := common.NewAppError(http.StatusUnauthorized, "Invalid or missing credentials", nil)
	err.Send(w)
}

// PrincipalFromContext retrieves the authenticated caller placed there by
// BasicAuthMiddleware.
func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	principal, ok := ctx.Value(PrincipalKey).(*model.Principal)
	return principal, ok
}
