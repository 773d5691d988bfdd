package backend

import "errors"

var (
	// ErrAuth indicates the CSRF token endpoint refused to issue a token.
	ErrAuth = errors.New("backend: authentication failed")
	// ErrNetwork indicates a transport failure or a non-2xx HTTP response.
	ErrNetwork = errors.New("backend: request failed")
)
