package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeRegistry_Completeness(t *testing.T) {
	allCodes := []ErrorCode{
		ErrTimeout,
		ErrContextCancelled,
		ErrRateLimit,
		ErrServiceUnavailable,
		ErrAuthFailed,
		ErrMissingInput,
		ErrParseError,
		ErrProcessingError,
	}

	for _, code := range allCodes {
		t.Run(string(code), func(t *testing.T) {
			info, ok := ErrorCodeRegistry[code]
			assert.True(t, ok, "ErrorCode %s should be in registry", code)
			assert.Equal(t, code, info.Code)
			assert.NotEmpty(t, info.Description)
			assert.NotEmpty(t, info.SuggestedAction)
		})
	}
}

func TestIsRetryable_ErrorCode(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrTimeout, true},
		{ErrRateLimit, true},
		{ErrServiceUnavailable, true},
		{ErrAuthFailed, false},
		{ErrParseError, false},
		{ErrorCode("unknown"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.code))
		})
	}
}

func TestLookupFallbacks(t *testing.T) {
	assert.Equal(t, "Unknown error", GetDescription(ErrorCode("nope")))
	assert.NotEmpty(t, GetSuggestedAction(ErrorCode("nope")))
	assert.Equal(t, "Run: ottermatch auth login", GetSuggestedAction(ErrAuthFailed))
}
