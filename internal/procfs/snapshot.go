package procfs

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
)

// Process is one row of a process-table snapshot.
type Process struct {
	PID  int
	PPID int
	Args string
}

// Snapshot captures the whole process table with a single
// "ps -eo pid,ppid,args" call — O(1) subprocess invocations regardless
// of how many candidates the caller inspects afterwards.
func Snapshot(ctx context.Context) ([]Process, error) {
	out, err := exec.CommandContext(ctx, "ps", "-eo", "pid=,ppid=,args=").Output()
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(string(out)), nil
}

// ParseSnapshot parses ps output lines of the form "PID PPID ARGS...".
// ARGS can itself contain spaces; malformed lines are skipped.
func ParseSnapshot(out string) []Process {
	var procs []Process
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err1 := strconv.Atoi(fields[0])
		ppid, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			continue
		}
		procs = append(procs, Process{
			PID:  pid,
			PPID: ppid,
			Args: strings.Join(fields[2:], " "),
		})
	}
	return procs
}

// HasChildren reports whether pid has at least one live child in the
// snapshot.
func HasChildren(procs []Process, pid int) bool {
	for _, p := range procs {
		if p.PPID == pid {
			return true
		}
	}
	return false
}
