package aldes

import "errors"

// ErrAuthentication indicates the credential exchange was rejected or the
// token endpoint was unreachable.
var ErrAuthentication = errors.New("authentication failed")

// ErrRequestFailed indicates an API request failed at the HTTP or payload
// level (non-200 status, unparseable body).
var ErrRequestFailed = errors.New("api request failed")
