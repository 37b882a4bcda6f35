package saic

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError surfaces gateway error envelopes and HTTP-level failures.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("saic api error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("saic http %d: %s", e.HTTPStatus, e.Message)
}

// ErrNoVehicles is returned when the account has no registered cars.
var ErrNoVehicles = errors.New("no vehicles registered on account")

// IsAuthError reports whether err indicates the session is no longer
// accepted and a fresh login is required.
func IsAuthError(err error) bool {
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.HTTPStatus == http.StatusUnauthorized || apiErr.HTTPStatus == http.StatusForbidden {
		return true
	}
	// Gateway-level auth failures come back as 401xx codes on HTTP 200.
	return apiErr.Code >= 40100 && apiErr.Code < 40200
}
