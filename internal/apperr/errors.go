// Package apperr defines the machine-readable error taxonomy for CoTask core
// operations. Every semantic validation failure carries a stable Kind so API
// clients can branch on the kind instead of string-matching display text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a category of semantic failure.
// Kinds are part of the API contract and must remain stable.
type Kind string

// Error kinds surfaced by the core services.
//
// Taxonomy:
//   - Authentication/membership: KindNotAuthenticated, KindNotMember
//   - Authorization: KindPermissionDenied, KindInvalidTarget
//   - Delegation guards: KindAlreadyAssigned, KindDuplicateDelegate,
//     KindNotCurrentAssignee, KindNotDelegated, KindDelegationLimitReached
//   - Lifecycle guards: KindSubtasksIncomplete
//   - Membership invariants: KindLastOwnerRemoval, KindLastOwnerDemotion
//   - Cryptography: KindDecryptionFailed
//   - Generic: KindNotFound, KindInvalid
const (
	KindNotAuthenticated       Kind = "not_authenticated"
	KindNotFound               Kind = "not_found"
	KindNotMember              Kind = "not_member"
	KindPermissionDenied       Kind = "permission_denied"
	KindInvalidTarget          Kind = "invalid_target"
	KindAlreadyAssigned        Kind = "already_assigned"
	KindDuplicateDelegate      Kind = "duplicate_delegate"
	KindNotCurrentAssignee     Kind = "not_current_assignee"
	KindNotDelegated           Kind = "not_delegated"
	KindDelegationLimitReached Kind = "delegation_limit_reached"
	KindSubtasksIncomplete     Kind = "subtasks_incomplete"
	KindLastOwnerRemoval       Kind = "last_owner_removal"
	KindLastOwnerDemotion      Kind = "last_owner_demotion"
	KindDecryptionFailed       Kind = "decryption_failed"
	KindInvalid                Kind = "invalid"
)

// Error is a semantic failure with a stable kind and human-readable message.
// The message is display text; the Kind is the contract.
type Error struct {
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from an error chain.
// Returns empty Kind ("") if the error carries no apperr.Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to the HTTP status code handlers should
// return. Unknown kinds (including wrapped infrastructure errors) map to 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotAuthenticated:
		return 401
	case KindNotFound:
		return 404
	case KindNotMember, KindPermissionDenied, KindNotCurrentAssignee, KindNotDelegated:
		return 403
	case KindInvalidTarget, KindInvalid, KindDecryptionFailed:
		return 400
	case KindAlreadyAssigned, KindDuplicateDelegate, KindDelegationLimitReached,
		KindSubtasksIncomplete, KindLastOwnerRemoval, KindLastOwnerDemotion:
		return 409
	default:
		return 500
	}
}
