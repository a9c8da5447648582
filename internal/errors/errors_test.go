package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func allSentinels() []error {
	return []error{
		ErrTransientNetwork,
		ErrLocalStorageCorruption,
		ErrRemoteRejection,
		ErrNoteNotFound,
		ErrEmptyNote,
		ErrInvalidMode,
	}
}

func TestSentinelErrors_ImplementErrorInterface(t *testing.T) {
	for _, err := range allSentinels() {
		assert.NotEmpty(t, err.Error(), "sentinel error should have non-empty message")
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := allSentinels()
	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinel errors should be distinct: %q vs %q", sentinels[i], sentinels[j])
		}
	}
}

func TestSentinelErrors_ExpectedMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrTransientNetwork, "remote store unreachable"},
		{ErrLocalStorageCorruption, "local ledger unreadable"},
		{ErrRemoteRejection, "remote store rejected the write"},
		{ErrNoteNotFound, "note not found"},
		{ErrEmptyNote, "note has no title or content"},
		{ErrInvalidMode, "invalid note mode"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestSentinelErrors_SurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("pushing note abc: %w", ErrRemoteRejection)
	assert.True(t, errors.Is(wrapped, ErrRemoteRejection))
	assert.False(t, errors.Is(wrapped, ErrTransientNetwork))
}
