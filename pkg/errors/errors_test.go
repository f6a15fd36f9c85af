package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("channel 12: %w", FeedParseMismatch("found %d links and %d dates", 3, 2))

	assert.Equal(t, ErrorTypeFeedParse, TypeOf(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypeFeedParse))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(io.EOF))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(nil))
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"auth expired", AuthExpired(401, "session rejected"), true},
		{"filesystem", Filesystem(io.ErrShortWrite, "write %s", "a.jpg"), true},
		{"wrapped filesystem", fmt.Errorf("post 5: %w", Filesystem(nil, "mkdir")), true},
		{"cancelled", fmt.Errorf("page 2: %w", context.Canceled), true},
		{"download", Download(500, nil, "fetch body"), false},
		{"feed parse", FeedParseMismatch("no dates"), false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Filesystem(io.ErrUnexpectedEOF, "write %s", "1.jpg")

	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "write 1.jpg")
	assert.Contains(t, err.Error(), "filesystem error")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.False(t, IsRetryable(ErrorTypeAuthExpired))
	assert.False(t, IsRetryable(ErrorTypeDownload))
}
