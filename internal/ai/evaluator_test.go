package ai

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("  How do you perform content audits?  ", "Quarterly, with a spreadsheet.")

	if !strings.Contains(prompt, `Question: "How do you perform content audits?"`) {
		t.Fatalf("question not rendered: %s", prompt)
	}
	if !strings.Contains(prompt, `Answer: "Quarterly, with a spreadsheet."`) {
		t.Fatalf("answer not rendered: %s", prompt)
	}
	if strings.Contains(prompt, "{{") {
		t.Fatalf("placeholders left in prompt: %s", prompt)
	}
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name     string
		question string
		answer   string
		wantErr  bool
	}{
		{name: "both present", question: "Q", answer: "A"},
		{name: "missing question", question: " ", answer: "A", wantErr: true},
		{name: "missing answer", question: "Q", answer: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.question, tt.answer)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateInput() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCleanFeedback(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "  Nice work!  ", want: "Nice work!"},
		{name: "quoted", input: `"Great structure."`, want: "Great structure."},
		{name: "fenced", input: "```\nKeep it up.\n```", want: "Keep it up."},
		{name: "fenced markdown", input: "```markdown\n**Solid** answer\n```", want: "**Solid** answer"},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanFeedback(tt.input); got != tt.want {
				t.Fatalf("CleanFeedback(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
