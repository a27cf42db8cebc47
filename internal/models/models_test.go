package models

import "testing"

func TestNewUsage_TotalIsSum(t *testing.T) {
	for _, tc := range []struct{ prompt, completion int }{
		{0, 0}, {5, 2}, {1000, 0}, {0, 37}, {123456, 654321},
	} {
		u := NewUsage(tc.prompt, tc.completion)
		if u.TotalTokens != u.PromptTokens+u.CompletionTokens {
			t.Errorf("NewUsage(%d, %d): total %d != %d + %d",
				tc.prompt, tc.completion, u.TotalTokens, u.PromptTokens, u.CompletionTokens)
		}
		if u.PromptTokens != tc.prompt || u.CompletionTokens != tc.completion {
			t.Errorf("NewUsage(%d, %d) = %+v", tc.prompt, tc.completion, u)
		}
	}
}

func TestNewUsage_ClampsNegative(t *testing.T) {
	u := NewUsage(-3, 4)
	if u.PromptTokens != 0 || u.TotalTokens != 4 {
		t.Errorf("unexpected usage: %+v", u)
	}
}
