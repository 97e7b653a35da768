package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestWrap(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "store", "Upsert", "record write")
	require.Error(t, err)
	assert.Equal(t, "store.Upsert: record write failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))

	assert.NoError(t, Wrap(nil, "store", "Upsert", "record write"))
}

func TestWrapClassified(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		check func(error) bool
	}{
		{"transient", WrapTransient, IsTransient},
		{"invalid", WrapInvalid, IsInvalid},
		{"fatal", WrapFatal, IsFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := stderrors.New("boom")
			err := tt.wrap(base, "mqtt-input", "Start", "broker connect")
			require.Error(t, err)
			assert.True(t, tt.check(err))
			assert.True(t, stderrors.Is(err, base))

			var ce *ClassifiedError
			require.True(t, stderrors.As(err, &ce))
			assert.Equal(t, "mqtt-input", ce.Component)
			assert.Equal(t, "Start", ce.Operation)

			assert.NoError(t, tt.wrap(nil, "mqtt-input", "Start", "broker connect"))
		})
	}
}

func TestIsTransient_Sentinels(t *testing.T) {
	assert.True(t, IsTransient(ErrConnectionLost))
	assert.True(t, IsTransient(ErrConnectionTimeout))
	assert.True(t, IsTransient(ErrFetchFailed))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("dial tcp: connection refused")))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(ErrNotAnImage))
}

func TestIsFatal_Sentinels(t *testing.T) {
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(ErrMissingConfig))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(ErrConnectionLost))
}

func TestIsInvalid_Sentinels(t *testing.T) {
	assert.True(t, IsInvalid(ErrNotAnImage))
	assert.False(t, IsInvalid(nil))
	assert.False(t, IsInvalid(ErrConnectionLost))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(nil))
	assert.Equal(t, ErrorTransient, Classify(ErrConnectionLost))
	assert.Equal(t, ErrorFatal, Classify(ErrInvalidConfig))
	assert.Equal(t, ErrorInvalid, Classify(ErrNotAnImage))
	// Unknown errors default to transient
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("mystery")))
}
