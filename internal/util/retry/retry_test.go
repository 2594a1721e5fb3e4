package retry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "unclassified defaults to fatal", err: base, want: KindFatal},
		{name: "transient", err: Transient(base), want: KindTransient},
		{name: "configuration", err: Configuration(base), want: KindConfiguration},
		{name: "fatal", err: Fatal(base), want: KindFatal},
		{name: "wrapped transient", err: fmt.Errorf("failed to patch secret: %w", Transient(base)), want: KindTransient},
		{name: "outermost wins", err: Configuration(Transient(base)), want: KindConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTransient(Transientf("conflict on %s", "secret")))
	assert.True(t, IsConfiguration(Configurationf("bad storage %q", "nfs")))
	assert.True(t, IsFatal(errors.New("unexpected")))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsConfiguration(nil))
}

func TestClassifyNil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Transient(nil))
	assert.NoError(t, Configuration(nil))
	assert.NoError(t, Fatal(nil))
}

func TestUnwrapKeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("timeout")
	err := fmt.Errorf("failed to wait: %w", Transient(cause))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to wait: timeout", err.Error())
	assert.Equal(t, "Transient", KindOf(err).String())
}
