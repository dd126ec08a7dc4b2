package backend

import "testing"

func TestParseCompleteResponse(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		body    string
		want    string
		wantOK  bool
		wantErr bool
	}{
		{
			name:   "generate single object",
			mode:   ModeGenerate,
			body:   `{"response":"Hello","done":true}`,
			want:   "Hello",
			wantOK: true,
		},
		{
			name:   "generate multi-line body concatenates",
			mode:   ModeGenerate,
			body:   "{\"response\":\"Hel\"}\n{\"response\":\"lo\"}\n{\"done\":true}",
			want:   "Hello",
			wantOK: true,
		},
		{
			name:    "generate error field",
			mode:    ModeGenerate,
			body:    `{"error":"model not loaded"}`,
			wantErr: true,
		},
		{
			name:   "chat message content",
			mode:   ModeChat,
			body:   `{"message":{"content":"Hi"},"done":true}`,
			want:   "Hi",
			wantOK: true,
		},
		{
			name:   "chat falls back to response",
			mode:   ModeChat,
			body:   `{"response":"fallback"}`,
			want:   "fallback",
			wantOK: true,
		},
		{
			name:    "chat error field",
			mode:    ModeChat,
			body:    `{"error":"bad model"}`,
			wantErr: true,
		},
		{
			name:   "openai message content",
			mode:   ModeOpenAI,
			body:   `{"choices":[{"message":{"content":"Hey"}}]}`,
			want:   "Hey",
			wantOK: true,
		},
		{
			name:   "openai null content is valid no-content",
			mode:   ModeOpenAI,
			body:   `{"choices":[{"message":{"content":null}}]}`,
			wantOK: false,
		},
		{
			name:   "openai missing choices is valid no-content",
			mode:   ModeOpenAI,
			body:   `{"object":"chat.completion"}`,
			wantOK: false,
		},
		{
			name:    "openai non-JSON body",
			mode:    ModeOpenAI,
			body:    "<html>gateway error</html>",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := parseCompleteResponse(tt.mode, []byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}
}
