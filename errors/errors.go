package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Taxonomy roots. Every error returned by the core wraps one of them.
var (
	ErrConflict            = fmt.Errorf("conflict")
	ErrNotFound            = fmt.Errorf("not found")
	ErrExternalUnavailable = fmt.Errorf("external service unavailable")
	ErrPermission          = fmt.Errorf("permission denied")
	ErrInvalidArgument     = fmt.Errorf("invalid argument")
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrConnectionAlreadyRegistered = fmt.Errorf("%w: connection already registered", ErrConflict)
	ErrConnectionNotFound          = fmt.Errorf("%w: connection", ErrNotFound)
	ErrConnectionClosed            = fmt.Errorf("connection closed")
	ErrBackpressure                = fmt.Errorf("connection outbound queue is full")

	ErrUserNotFound      = fmt.Errorf("%w: user", ErrNotFound)
	ErrUserAlreadyExists = fmt.Errorf("%w: user already exists", ErrConflict)
	ErrGroupNotFound     = fmt.Errorf("%w: group", ErrNotFound)

	ErrNotGroupMember   = fmt.Errorf("%w: not a member of this group", ErrPermission)
	ErrMessagingBlocked = fmt.Errorf("%w: messaging is blocked between these users", ErrPermission)
	ErrInvalidToken     = fmt.Errorf("%w: invalid or expired token", ErrPermission)

	ErrBlockedPair      = fmt.Errorf("%w: a block exists between group members", ErrInvalidArgument)
	ErrGroupTooLarge    = fmt.Errorf("%w: group exceeds the maximum size", ErrInvalidArgument)
	ErrInvalidGroup     = fmt.Errorf("%w: group name and members are required", ErrInvalidArgument)
	ErrEmptyMessage     = fmt.Errorf("%w: message needs text or an image", ErrInvalidArgument)
	ErrSelfBlock        = fmt.Errorf("%w: cannot block yourself", ErrInvalidArgument)
	ErrUnsupportedMedia = fmt.Errorf("%w: only images are accepted", ErrInvalidArgument)
	ErrMediaTooLarge    = fmt.Errorf("%w: image is too large", ErrInvalidArgument)
	ErrWeakPassword     = fmt.Errorf("%w: password must mix upper, lower, digit and symbol", ErrInvalidArgument)

	ErrUploadFailed = fmt.Errorf("%w: media upload", ErrExternalUnavailable)
)

// External classifies an error coming back from a store or the uploader.
// Known taxonomy errors pass through, anything else (timeouts, I/O) becomes
// ErrExternalUnavailable.
func External(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrConflict, ErrNotFound, ErrPermission, ErrInvalidArgument, ErrExternalUnavailable} {
		if stderrors.Is(err, known) {
			return err
		}
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrExternalUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
}

// InvalidArgument wraps a validation failure into the taxonomy.
func InvalidArgument(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
}

// HTTPStatus maps the taxonomy to a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrPermission):
		return http.StatusForbidden
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrConflict):
		return http.StatusConflict
	case stderrors.Is(err, ErrExternalUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
