package protocol

const (
	// Request validation.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrOutOfBounds = "E_OUT_OF_BOUNDS"

	// Auth.
	ErrUnauthorized = "E_UNAUTHORIZED"
	ErrForbidden    = "E_FORBIDDEN"
	ErrEmailExists  = "E_EMAIL_EXISTS"
	ErrWeakPassword = "E_WEAK_PASSWORD"

	// Resources.
	ErrNotFound = "E_NOT_FOUND"
	ErrConflict = "E_CONFLICT"

	// Upstreams.
	ErrWorldUnavailable   = "E_WORLD_UNAVAILABLE"
	ErrBackendUnavailable = "E_BACKEND_UNAVAILABLE"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:         {},
	ErrOutOfBounds:        {},
	ErrUnauthorized:       {},
	ErrForbidden:          {},
	ErrEmailExists:        {},
	ErrWeakPassword:       {},
	ErrNotFound:           {},
	ErrConflict:           {},
	ErrWorldUnavailable:   {},
	ErrBackendUnavailable: {},
	ErrInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
