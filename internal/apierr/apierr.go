// Package apierr enumerates the domain-level error taxonomy from spec §7
// (Validation, Identity, Capacity, Transport, State) as sentinel errors
// that handlers map to HTTP statuses with errors.Is, the way the teacher's
// handler layer maps repository errors to status codes.
package apierr

import "errors"

var (
	// ErrAlreadyCreated — State: session:{sid} already exists.
	ErrAlreadyCreated = errors.New("ALREADY_CREATED")
	// ErrNoBot — State: no session exists for sid.
	ErrNoBot = errors.New("NO_BOT")
	// ErrNoBalancers — Capacity: balancers:queue is empty.
	ErrNoBalancers = errors.New("NO_BALANCERS")
	// ErrNoWorkers — Capacity: every balancer is at zero remaining capacity.
	ErrNoWorkers = errors.New("NO_WORKERS")
	// ErrPublishError — Transport: broker delivery failed or was cancelled.
	ErrPublishError = errors.New("PUBLISH_ERROR")
	// ErrValidation — Validation: malformed name/URL/passcode.
	ErrValidation = errors.New("VALIDATION_ERROR")
	// ErrIdentity — Identity: chat-service rejected credentials, not host,
	// room full, or bot-name collision.
	ErrIdentity = errors.New("IDENTITY_ERROR")
	// ErrInternal — Internal: any other unexpected failure.
	ErrInternal = errors.New("INTERNAL_ERROR")
)

// Status maps a domain error to the spec §7 HTTP status class. Unknown
// errors default to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return 403
	case errors.Is(err, ErrIdentity):
		return 403
	case errors.Is(err, ErrNoBalancers), errors.Is(err, ErrNoWorkers):
		return 503
	case errors.Is(err, ErrPublishError):
		return 503
	case errors.Is(err, ErrAlreadyCreated), errors.Is(err, ErrNoBot):
		return 303
	default:
		return 500
	}
}

// Message translates a domain error into the human-readable string the
// HTTP layer returns to the client, grounded on
// original_source/api/errors.py's ERRORS_MAP (translate_error_code).
// Validation/Identity errors carry their own wrapped detail and pass
// through unchanged; the State/Capacity/Transport sentinels map to the
// same fixed phrases the original returns instead of their raw codes.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyCreated):
		return "Bot already created"
	case errors.Is(err, ErrNoBot):
		return "Bot already deleted"
	case errors.Is(err, ErrNoBalancers), errors.Is(err, ErrNoWorkers), errors.Is(err, ErrPublishError):
		return "Service is currently unavailable"
	default:
		return err.Error()
	}
}
