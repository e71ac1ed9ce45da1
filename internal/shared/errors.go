package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrNotLoggedIn  = fmt.Errorf("not logged in")
	ErrUnauthorized = fmt.Errorf("access token rejected")
	ErrAuthExchange = fmt.Errorf("token exchange failed")

	// API errors
	ErrAPIRequest = fmt.Errorf("API request failed")
)
