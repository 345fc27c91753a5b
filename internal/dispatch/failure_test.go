package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStrings(t *testing.T) {
	cases := map[Kind]string{
		KindUnknownCommand:   "unknown_command",
		KindMissingArgument:  "missing_argument",
		KindBadArgument:      "bad_argument",
		KindPermissionDenied: "permission_denied",
		KindCooldown:         "cooldown_active",
		KindCheckFailed:      "check_failed",
		KindInternal:         "generic_failure",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func TestClassifyPassesThroughFailures(t *testing.T) {
	f := Fail(KindPermissionDenied, "no")
	assert.Same(t, f, Classify(f))
}

func TestClassifyWrapsArbitraryErrors(t *testing.T) {
	cause := errors.New("database exploded")
	f := Classify(cause)

	require.NotNil(t, f)
	assert.Equal(t, KindInternal, f.Kind)
	assert.Equal(t, cause, f.Cause)
	// The user-facing message never carries the cause.
	assert.NotContains(t, f.Message, "database")
}

func TestClassifyUnwrapsNestedFailures(t *testing.T) {
	inner := Fail(KindCooldown, "wait")
	wrapped := errors.Join(errors.New("outer"), inner)
	assert.Equal(t, KindCooldown, Classify(wrapped).Kind)
}

func TestFailureUnwrap(t *testing.T) {
	cause := errors.New("root")
	f := &Failure{Kind: KindInternal, Message: "boom", Cause: cause}
	assert.ErrorIs(t, f, cause)
}
