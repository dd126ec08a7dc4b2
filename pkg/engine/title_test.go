package engine

import (
	"strings"
	"testing"

	"github.com/noctics/central/pkg/api"
)

func TestComputeTitle(t *testing.T) {
	tests := []struct {
		name string
		msgs []api.Message
		want string
	}{
		{
			name: "first user message",
			msgs: []api.Message{
				{Role: api.RoleSystem, Content: "be terse"},
				{Role: api.RoleUser, Content: "how do I tune a guitar?"},
			},
			want: "how do I tune a guitar?",
		},
		{
			name: "skips helper result wraps",
			msgs: []api.Message{
				{Role: api.RoleUser, Content: "[HELPER RESULT]42[/HELPER RESULT]"},
				{Role: api.RoleUser, Content: "real question"},
			},
			want: "real question",
		},
		{
			name: "skips instrument result wraps",
			msgs: []api.Message{
				{Role: api.RoleUser, Content: "  [INSTRUMENT RESULT]x[/INSTRUMENT RESULT]"},
				{Role: api.RoleUser, Content: "actual topic"},
			},
			want: "actual topic",
		},
		{
			name: "collapses whitespace and trims to eight words",
			msgs: []api.Message{
				{Role: api.RoleUser, Content: "one  two\nthree four five six seven eight nine ten"},
			},
			want: "one two three four five six seven eight",
		},
		{
			name: "no user messages",
			msgs: []api.Message{{Role: api.RoleSystem, Content: "sys"}},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeTitle(tt.msgs, "INSTRUMENT"); got != tt.want {
				t.Errorf("ComputeTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComputeTitleCharLimit(t *testing.T) {
	long := strings.Repeat("abcdefghijklm ", 8) // 8 long words, > 80 chars
	got := ComputeTitle([]api.Message{{Role: api.RoleUser, Content: long}}, "")
	if len(got) > 80 {
		t.Errorf("title length = %d, want <= 80", len(got))
	}
}
