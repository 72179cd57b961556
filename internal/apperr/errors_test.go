package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flvvius/cotask/internal/apperr"
)

// TestKindOf verifies kind extraction through wrapped error chains.
func TestKindOf(t *testing.T) {
	base := apperr.New(apperr.KindDuplicateDelegate, "user already appears in the delegation chain")
	wrapped := fmt.Errorf("delegate task 10: %w", base)

	assert.Equal(t, apperr.KindDuplicateDelegate, apperr.KindOf(base))
	assert.Equal(t, apperr.KindDuplicateDelegate, apperr.KindOf(wrapped), "kind should survive wrapping")
	assert.Equal(t, apperr.Kind(""), apperr.KindOf(errors.New("plain error")))
	assert.Equal(t, apperr.Kind(""), apperr.KindOf(nil))
}

// TestIsKind verifies the boolean convenience wrapper.
func TestIsKind(t *testing.T) {
	err := apperr.Newf(apperr.KindDelegationLimitReached, "delegation limit of %d reached", 3)

	assert.True(t, apperr.IsKind(err, apperr.KindDelegationLimitReached))
	assert.False(t, apperr.IsKind(err, apperr.KindAlreadyAssigned))
	assert.EqualError(t, err, "delegation limit of 3 reached")
}

// TestError_MessageFallback verifies an empty message falls back to the kind.
func TestError_MessageFallback(t *testing.T) {
	err := apperr.New(apperr.KindNotFound, "")

	assert.EqualError(t, err, "not_found")
}

// TestHTTPStatus verifies the kind-to-status mapping handlers rely on.
// Conflict-class kinds (state machine guards) map to 409, authorization
// failures to 403, and anything without a kind to 500.
func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not authenticated", apperr.New(apperr.KindNotAuthenticated, ""), 401},
		{"not found", apperr.New(apperr.KindNotFound, ""), 404},
		{"not member", apperr.New(apperr.KindNotMember, ""), 403},
		{"permission denied", apperr.New(apperr.KindPermissionDenied, ""), 403},
		{"not current assignee", apperr.New(apperr.KindNotCurrentAssignee, ""), 403},
		{"not delegated", apperr.New(apperr.KindNotDelegated, ""), 403},
		{"invalid target", apperr.New(apperr.KindInvalidTarget, ""), 400},
		{"invalid", apperr.New(apperr.KindInvalid, ""), 400},
		{"decryption failed", apperr.New(apperr.KindDecryptionFailed, ""), 400},
		{"already assigned", apperr.New(apperr.KindAlreadyAssigned, ""), 409},
		{"duplicate delegate", apperr.New(apperr.KindDuplicateDelegate, ""), 409},
		{"delegation limit", apperr.New(apperr.KindDelegationLimitReached, ""), 409},
		{"subtasks incomplete", apperr.New(apperr.KindSubtasksIncomplete, ""), 409},
		{"last owner removal", apperr.New(apperr.KindLastOwnerRemoval, ""), 409},
		{"last owner demotion", apperr.New(apperr.KindLastOwnerDemotion, ""), 409},
		{"infrastructure error", errors.New("connection refused"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.HTTPStatus(tt.err))
		})
	}
}
