package shell

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	allowed := []string{"ls", "git", "cd", "python3", "kubectl", "claude"}
	for _, name := range allowed {
		if !p.Allows(name) {
			t.Errorf("%s should be allowed", name)
		}
	}
	blocked := []string{"rm", "sudo", "dd", "mkfs", "umount", "/bin/rm", "/usr/bin/sudo"}
	for _, name := range blocked {
		if p.Allows(name) {
			t.Errorf("%s should be blocked", name)
		}
	}
}

func TestPolicy_BaseToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ls", "ls"},
		{"  git status", "git"},
		{"rm -rf /", "rm"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := BaseToken(tt.in); got != tt.want {
			t.Errorf("BaseToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPolicy_BlockedEvenWhenEmbedded(t *testing.T) {
	p := DefaultPolicy()
	if p.Allows("rm -rf /") {
		t.Fatal("rm with args must be blocked")
	}
}

func TestPolicy_ListsAreSorted(t *testing.T) {
	p := NewPolicy([]string{"pwd", "ls", " ", "git"}, []string{"rm"})

	if diff := cmp.Diff([]string{"git", "ls", "pwd"}, p.Allowed()); diff != "" {
		t.Errorf("Allowed() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"rm"}, p.Blocked()); diff != "" {
		t.Errorf("Blocked() mismatch (-want +got):\n%s", diff)
	}
}
