package gcal

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// AuthError marks a failure to acquire a usable credential.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "gcal: auth: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// ApiError wraps a non-2xx backend response.
type ApiError struct {
	Code int
	Err  error
}

func (e *ApiError) Error() string { return fmt.Sprintf("gcal: api error (status %d): %v", e.Code, e.Err) }
func (e *ApiError) Unwrap() error { return e.Err }

// TokenExpired reports whether the response means the bearer credential
// is no longer accepted; the caller invalidates and re-authenticates
// exactly once before treating the error as hard.
func (e *ApiError) TokenExpired() bool { return e.Code == http.StatusUnauthorized }

// classify maps transport-level errors into the gateway taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &ApiError{Code: gerr.Code, Err: err}
	}
	return err
}

// IsTokenExpired reports whether err is a 401-class ApiError.
func IsTokenExpired(err error) bool {
	var aerr *ApiError
	return errors.As(err, &aerr) && aerr.TokenExpired()
}
