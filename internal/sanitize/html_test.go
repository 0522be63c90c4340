package sanitize

import (
	"testing"
)

func TestTextStripsMarkup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "script tag", input: `Open air <script>alert('x')</script>cinema`, expected: `Open air cinema`},
		{name: "event handler", input: `<span onmouseover="steal()">Tango</span>`, expected: `Tango`},
		{name: "image", input: `<img src=x onerror="alert(1)">`, expected: ``},
		{name: "plain", input: `Farmers market`, expected: `Farmers market`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.expected {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: `Rock & Roll`, expected: `Rock & Roll`},
		{input: `  <b>Jazz</b> night  `, expected: `Jazz night`},
		{input: `<script>alert(1)</script>`, expected: ``},
		{input: `Café "Le Monde"`, expected: `Café "Le Monde"`},
	}

	for _, tt := range tests {
		if got := PlainText(tt.input); got != tt.expected {
			t.Errorf("PlainText(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
