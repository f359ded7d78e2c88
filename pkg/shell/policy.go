package shell

import (
	"path/filepath"
	"sort"
	"strings"
)

// Policy decides which base program names may be spawned. Blocked always
// wins over Allowed.
type Policy struct {
	allowed map[string]struct{}
	blocked map[string]struct{}
}

var defaultAllowed = []string{
	// navigation
	"ls", "pwd", "cd", "find", "which", "tree",
	// file reading
	"cat", "head", "tail", "grep", "awk", "sed", "sort", "uniq",
	// version control
	"git",
	// package managers
	"npm", "pnpm", "yarn", "pip", "poetry", "brew",
	// runtimes
	"node", "python", "python3", "go", "rustc", "cargo",
	// system introspection
	"ps", "top", "df", "du", "free", "uname", "whoami",
	// containers
	"docker", "kubectl",
	// assistant launcher
	"claude",
}

var defaultBlocked = []string{
	"rm", "rmdir", "mv", "cp", "chmod", "chown", "sudo", "su",
	"kill", "killall", "reboot", "shutdown", "halt", "passwd",
	"dd", "fdisk", "mkfs", "mount", "umount",
}

func NewPolicy(allowed, blocked []string) *Policy {
	p := &Policy{
		allowed: make(map[string]struct{}, len(allowed)),
		blocked: make(map[string]struct{}, len(blocked)),
	}
	for _, name := range allowed {
		if name = strings.TrimSpace(name); name != "" {
			p.allowed[name] = struct{}{}
		}
	}
	for _, name := range blocked {
		if name = strings.TrimSpace(name); name != "" {
			p.blocked[name] = struct{}{}
		}
	}
	return p
}

func DefaultPolicy() *Policy {
	return NewPolicy(defaultAllowed, defaultBlocked)
}

// BaseToken returns the first whitespace-separated field of program.
func BaseToken(program string) string {
	fields := strings.Fields(program)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Allows reports whether program may be spawned. A blocked name is also
// matched against the last path element so "/bin/rm" is rejected even though
// only "rm" is listed.
func (p *Policy) Allows(program string) bool {
	base := BaseToken(program)
	if base == "" {
		return false
	}
	if _, blocked := p.blocked[base]; blocked {
		return false
	}
	if _, blocked := p.blocked[filepath.Base(base)]; blocked {
		return false
	}
	_, allowed := p.allowed[base]
	return allowed
}

func (p *Policy) Allowed() []string {
	return sortedKeys(p.allowed)
}

func (p *Policy) Blocked() []string {
	return sortedKeys(p.blocked)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
