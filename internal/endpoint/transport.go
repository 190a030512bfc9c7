package endpoint

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
)

// TransportKind names a concrete delivery channel for remote-control
// commands. Which verbs a transport supports is a property of the kind:
// only PrimarySocket carries arbitrary commands, the escape-sequence
// transports carry only the fixed background set/clear encoding.
type TransportKind int

const (
	// PrimarySocket delivers over kitty's control socket via kitten.
	PrimarySocket TransportKind = iota
	// MuxPassthrough relays an escape sequence through the multiplexer's
	// pass-through wrapper.
	MuxPassthrough
	// DirectEscape writes the escape sequence straight to the
	// controlling terminal.
	DirectEscape
)

func (k TransportKind) String() string {
	switch k {
	case PrimarySocket:
		return "socket"
	case MuxPassthrough:
		return "mux_passthrough"
	case DirectEscape:
		return "direct_escape"
	default:
		return "unknown"
	}
}

// Runner issues a command against the control socket and returns raw
// stdout. The default shells out to kitten; tests substitute a fake.
type Runner func(ctx context.Context, socketPath string, args []string) ([]byte, error)

// KittenRunner invokes "kitten @ --to <socket> <args...>".
func KittenRunner(ctx context.Context, socketPath string, args []string) ([]byte, error) {
	cmdArgs := append([]string{"@", "--to", socketPath}, args...)
	cmd := exec.CommandContext(ctx, "kitten", cmdArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &TransportError{
			Kind:   PrimarySocket,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}

// BackgroundVerb is the remote-control verb that sets or clears the
// window background image. It is the only verb with fallback semantics:
// its payload has a pre-agreed OSC 20 encoding usable without the control
// socket.
const BackgroundVerb = "set-background-image"

// backgroundPayload inspects a command for fallback capability. For
// "set-background-image <path>" it returns the base64-encoded image
// bytes; for "set-background-image none" an empty payload (clear). ok is
// false for every other command.
func backgroundPayload(args []string, readFile func(string) ([]byte, error)) (encoded string, ok bool, err error) {
	if len(args) != 2 || args[0] != BackgroundVerb {
		return "", false, nil
	}
	if args[1] == "none" {
		return "", true, nil
	}
	data, err := readFile(args[1])
	if err != nil {
		return "", true, fmt.Errorf("reading background image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), true, nil
}

// passthroughSequence builds the OSC 20 sequence wrapped in the tmux
// pass-through envelope, in printf-interpretable form: tmux run-shell
// executes "printf '<seq>'" so the backslash escapes are expanded inside
// the multiplexer's tty.
func passthroughSequence(encoded string) string {
	return fmt.Sprintf(`\ePtmux;\e\e]20;%s\e\e\\\e\\`, encoded)
}

// directSequence builds the raw OSC 20 escape bytes for writing straight
// to the controlling terminal.
func directSequence(encoded string) []byte {
	return []byte("\x1b]20;" + encoded + "\x1b\\")
}
