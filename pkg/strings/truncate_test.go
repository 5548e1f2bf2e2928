package strings

import (
	"testing"
)

func TestTruncateOneLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{
			name:     "short command unchanged",
			input:    "kubectl get nodes",
			maxLen:   30,
			expected: "kubectl get nodes",
		},
		{
			name:     "exact length unchanged",
			input:    "hello",
			maxLen:   5,
			expected: "hello",
		},
		{
			name:     "long command truncated",
			input:    "helm upgrade --install app ./chart --namespace production",
			maxLen:   20,
			expected: "helm upgrade --in...",
		},
		{
			name:     "multiline script flattened",
			input:    "set -e\nkubectl apply -f manifest.yml",
			maxLen:   60,
			expected: "set -e kubectl apply -f manifest.yml",
		},
		{
			name:     "whitespace runs collapsed",
			input:    "  aws \t sts\n\nget-caller-identity  ",
			maxLen:   60,
			expected: "aws sts get-caller-identity",
		},
		{
			name:     "unicode truncation keeps runes intact",
			input:    "日本語テスト文字列",
			maxLen:   6,
			expected: "日本語...",
		},
		{
			name:     "whitespace only becomes empty",
			input:    "   \n\t  ",
			maxLen:   10,
			expected: "",
		},
		{
			name:     "maxLen below minimum clamped",
			input:    "hello",
			maxLen:   2,
			expected: "h...",
		},
		{
			name:     "negative maxLen clamped",
			input:    "hello",
			maxLen:   -5,
			expected: "h...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TruncateOneLine(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("TruncateOneLine(%q, %d) = %q, want %q",
					tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestTruncateOneLine_RuneLength(t *testing.T) {
	input := "日本語テスト" // 6 runes, 18 bytes
	result := TruncateOneLine(input, 5)

	expected := "日本..."
	if result != expected {
		t.Errorf("Expected %q but got %q", expected, result)
	}

	runeCount := 0
	for range result {
		runeCount++
	}
	if runeCount != 5 {
		t.Errorf("Expected 5 runes but got %d", runeCount)
	}
}
