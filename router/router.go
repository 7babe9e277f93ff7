package router

import (
	"go-bankaccount-api/handler"
	"go-bankaccount-api/service"
	"net/http"
)

// NewRouter builds the explicit route table. Every /bankaccounts route sits
// behind Basic authentication; /health stays open for probes.
func NewRouter(accountHandler *handler.AccountHandler, verifier service.CredentialVerifier) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)

	auth := handler.BasicAuthMiddleware(verifier)

	mux.Handle("GET /bankaccounts", auth(handler.ErrorHandlingMiddleware(accountHandler.ListAccounts)))
	mux.Handle("POST /bankaccounts", auth(handler.ErrorHandlingMiddleware(accountHandler.CreateAccount)))
	mux.Handle("GET /bankaccounts/{id}", auth(handler.ErrorHandlingMiddleware(accountHandler.GetAccount)))
	mux.Handle("PATCH /bankaccounts/{id}/deposit", auth(handler.ErrorHandlingMiddleware(accountHandler.Deposit)))
	mux.Handle("PATCH /bankaccounts/{id}/withdrawal", auth(handler.ErrorHandlingMiddleware(accountHandler.Withdrawal)))
	mux.Handle("PATCH /bankaccounts/{id}/transfer", auth(handler.ErrorHandlingMiddleware(accountHandler.Transfer)))

	return mux
}
