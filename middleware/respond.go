package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	sessionguard "github.com/retailcore/sessionguard"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError emits the JSON rejection body. Only the sentinel text
// reaches the client; wrapped internal detail stays server-side.
func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Code:    sessionguard.ReasonCode(err),
		Message: sentinelMessage(err),
	})
}

// statusFor maps engine rejections to the status contract: 401 for
// session failures, 403 for account-state and permission failures, 429
// for rate limiting.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sessionguard.ErrInvalidSession),
		errors.Is(err, sessionguard.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, sessionguard.ErrEmailVerificationRequired),
		errors.Is(err, sessionguard.ErrAccountNotApproved),
		errors.Is(err, sessionguard.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, sessionguard.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func sentinelMessage(err error) string {
	for _, sentinel := range []error{
		sessionguard.ErrInvalidSession,
		sessionguard.ErrSessionExpired,
		sessionguard.ErrEmailVerificationRequired,
		sessionguard.ErrAccountNotApproved,
		sessionguard.ErrPermissionDenied,
		sessionguard.ErrAccountLocked,
		sessionguard.ErrRateLimited,
		sessionguard.ErrInvalidCredentials,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}
