// Package launch executes entry actions as detached processes. The
// daemon never tracks or reaps children; a launched application outlives
// both the query round and the daemon itself.
package launch

import (
	"log/slog"
	"os/exec"
	"strings"
	"syscall"

	"github.com/lumen-launcher/lumen/internal/entry"
	"github.com/lumen-launcher/lumen/internal/errors"
)

// Handle describes a successfully spawned process.
type Handle struct {
	PID  int
	Args []string
}

// Executor spawns entry actions.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Run expands the action's Exec template against the entry and spawns
// it detached from the daemon's process group. Failure is a visible,
// recoverable error; it never affects the catalog or the daemon.
func (x *Executor) Run(template string, e *entry.Entry) (Handle, error) {
	args, err := ExpandExec(template, e)
	if err != nil {
		return Handle{}, err
	}

	h, err := x.Spawn(args)
	if err != nil {
		return Handle{}, err
	}

	x.logger.Info("launched",
		slog.String("entry", e.Name),
		slog.String("exec", args[0]),
		slog.Int("pid", h.PID))

	return h, nil
}

// Spawn starts the given argv detached from the daemon's process group.
// The child is released immediately and never waited on.
func (x *Executor) Spawn(args []string) (Handle, error) {
	if len(args) == 0 {
		return Handle{}, errors.New(errors.ErrCodeBadExecLine, "empty argv", nil)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return Handle{}, errors.LaunchError("failed to start process", err).
			WithDetail("exec", strings.Join(args, " "))
	}

	pid := cmd.Process.Pid
	_ = cmd.Process.Release()

	return Handle{PID: pid, Args: args}, nil
}

// ExpandExec tokenizes a desktop Exec template and expands its field
// codes. File and URL codes (%f %F %u %U) expand to nothing since the
// launcher passes no documents; %i expands to "--icon <icon>" when the
// entry has one, %c to the entry name, %k to the descriptor path, and
// %% to a literal percent. Arguments that expand to nothing are removed.
func ExpandExec(template string, e *entry.Entry) ([]string, error) {
	tokens, err := splitExec(template)
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		expanded, keep := expandToken(tok, e)
		if keep {
			args = append(args, expanded...)
		}
	}

	if len(args) == 0 {
		return nil, errors.New(errors.ErrCodeBadExecLine, "exec line is empty after expansion", nil).
			WithDetail("template", template)
	}
	return args, nil
}

func expandToken(tok string, e *entry.Entry) ([]string, bool) {
	switch tok {
	case "%f", "%F", "%u", "%U", "%d", "%D", "%n", "%N", "%v", "%m":
		// Document and deprecated codes: nothing to pass, drop the arg.
		return nil, false
	case "%i":
		if e.Icon == "" {
			return nil, false
		}
		return []string{"--icon", e.Icon}, true
	case "%c":
		return []string{e.Name}, true
	case "%k":
		return []string{e.SourcePath}, true
	}

	if !strings.Contains(tok, "%") {
		return []string{tok}, true
	}

	// Inline codes inside a larger argument expand in place.
	var b strings.Builder
	for i := 0; i < len(tok); i++ {
		if tok[i] != '%' || i+1 == len(tok) {
			b.WriteByte(tok[i])
			continue
		}
		i++
		switch tok[i] {
		case '%':
			b.WriteByte('%')
		case 'c':
			b.WriteString(e.Name)
		case 'k':
			b.WriteString(e.SourcePath)
		case 'f', 'F', 'u', 'U', 'd', 'D', 'n', 'N', 'v', 'm', 'i':
			// expands to nothing inline
		default:
			// Unknown code: keep literally, some descriptors are sloppy.
			b.WriteByte('%')
			b.WriteByte(tok[i])
		}
	}
	if b.Len() == 0 {
		return nil, false
	}
	return []string{b.String()}, true
}

// splitExec splits an Exec line on unquoted whitespace, honoring the
// desktop-entry quoting rules (double quotes, backslash escapes).
func splitExec(line string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	escaped := false
	started := false

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				tokens = append(tokens, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}

	if inQuote {
		return nil, errors.New(errors.ErrCodeBadExecLine, "unterminated quote in exec line", nil).
			WithDetail("template", line)
	}
	if started {
		tokens = append(tokens, cur.String())
	}
	if len(tokens) == 0 {
		return nil, errors.New(errors.ErrCodeBadExecLine, "empty exec line", nil)
	}
	return tokens, nil
}
