package source

import "testing"

func TestAPIErrorRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  APIError
		want bool
	}{
		{"rate limited", APIError{Status: 429}, true},
		{"quota exceeded", APIError{Status: 403, Reason: "quotaExceeded"}, true},
		{"rate limit reason", APIError{Status: 403, Reason: "rateLimitExceeded"}, true},
		{"forbidden", APIError{Status: 403, Reason: "commentsDisabled"}, false},
		{"server error", APIError{Status: 503}, true},
		{"not found", APIError{Status: 404}, false},
		{"bad request", APIError{Status: 400}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
