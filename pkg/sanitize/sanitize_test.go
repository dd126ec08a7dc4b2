package sanitize

import (
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"email", "mail me at alice@example.com please", "mail me at [EMAIL] please"},
		{"ssn", "my ssn is 123-45-6789", "my ssn is [SSN]"},
		{"card", "card 4111 1111 1111 1111 thanks", "card [CARD] thanks"},
		{"ipv4", "host is 192.168.1.10 here", "host is [IP] here"},
		{"clean text untouched", "what is the capital of France?", "what is the capital of France?"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Redact(tt.in); got != tt.want {
				t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedactPhone(t *testing.T) {
	got := Redact("call +1 555 123 4567 tomorrow")
	if strings.Contains(got, "555") {
		t.Errorf("phone number survived redaction: %q", got)
	}
	if !strings.Contains(got, "[PHONE]") {
		t.Errorf("no phone placeholder in %q", got)
	}
}

func TestRedactIsIdempotent(t *testing.T) {
	in := "reach bob@corp.io or 10.0.0.1"
	once := Redact(in)
	if Redact(once) != once {
		t.Errorf("second pass changed output: %q vs %q", Redact(once), once)
	}
}
