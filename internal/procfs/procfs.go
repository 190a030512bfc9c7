// Package procfs reads per-process metadata from the /proc filesystem.
//
// Everything here is best-effort: processes routinely exit between
// enumeration and inspection, so a missing or unreadable entry is never
// an error — it reports as "no match" or "no parent" and the caller
// moves on.
package procfs

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Inspector answers two questions about a PID: does its command line
// match the target application signature, and who is its parent.
type Inspector struct {
	// Root is the proc mount point. Defaults to "/proc" when empty;
	// tests point it at a fake tree.
	Root string

	// Signature is the substring that identifies the target application
	// in a command line (e.g. "kitty").
	Signature string

	// SelfName is this tool's own binary name. The tool's name embeds
	// the signature ("kittybg" contains "kitty"), so command lines
	// containing SelfName are excluded to avoid matching ourselves.
	SelfName string
}

func (in *Inspector) root() string {
	if in.Root != "" {
		return in.Root
	}
	return "/proc"
}

// Cmdline returns the full command line of a process with NUL separators
// replaced by spaces. The second return is false if the process has no
// readable metadata (already exited, permission denied).
func (in *Inspector) Cmdline(pid int) (string, bool) {
	if pid <= 0 {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(in.root(), strconv.Itoa(pid), "cmdline"))
	if err != nil || len(data) == 0 {
		return "", false
	}
	return strings.TrimSpace(strings.ReplaceAll(string(data), "\x00", " ")), true
}

// MatchesTarget reports whether the process's command line contains the
// target signature. Command lines containing SelfName never match.
func (in *Inspector) MatchesTarget(pid int) bool {
	cmd, ok := in.Cmdline(pid)
	if !ok {
		return false
	}
	return in.MatchesCommand(cmd)
}

// MatchesCommand applies the signature check to an already-read command line.
func (in *Inspector) MatchesCommand(cmd string) bool {
	if in.Signature == "" || !strings.Contains(cmd, in.Signature) {
		return false
	}
	if in.SelfName != "" && strings.Contains(cmd, in.SelfName) {
		return false
	}
	return true
}

// ParentPID returns the immediate parent of a process. The second return
// is false when there is no further parent to walk to: the stat entry is
// unreadable, malformed, or the parent is PID 1 or below (the process
// tree root).
func (in *Inspector) ParentPID(pid int) (int, bool) {
	if pid <= 0 {
		return 0, false
	}
	data, err := os.ReadFile(filepath.Join(in.root(), strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, false
	}

	// stat format: pid (comm) state ppid ...
	// comm can contain spaces and parentheses, so split after the last ')'.
	content := string(data)
	idx := strings.LastIndexByte(content, ')')
	if idx < 0 {
		return 0, false
	}
	fields := strings.Fields(content[idx+1:])
	if len(fields) < 2 {
		return 0, false
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil || ppid <= 1 {
		return 0, false
	}
	return ppid, true
}
