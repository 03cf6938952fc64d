//go:build unix

package procmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// DefaultConfigFlag is the flag node binaries read their config path from
const DefaultConfigFlag = "--configPath"

// CommandWrapper rewrites a command line, e.g. to run it with elevated
// privileges. It is applied to the node command and to the signals sent to
// its process group.
type CommandWrapper func(name string, args []string) (string, []string)

// Sudo runs commands through non-interactive sudo, keeping the environment.
// Signals go to the process group of sudo itself. A sudo configured with
// use_pty runs the command in a session of its own and relays only some
// signals to it, so a forced kill may leave the node running; disable
// use_pty for the node binaries.
func Sudo() CommandWrapper {
	return func(name string, args []string) (string, []string) {
		return "sudo", append([]string{"-n", "--preserve-env", "--", name}, args...)
	}
}

// ExecLauncher spawns nodes as local processes, each in its own process
// group so that signals reach every helper the node forks. The node's
// identity is exported through the VMLAUNCHER_* variables and can be
// placed in arguments with placeholders (see LaunchRequest.ExpandArgs),
// which lets a wrapper script boot the node inside a VM.
type ExecLauncher struct {
	// ConfigFlag is appended as "<flag>=<path>"; DefaultConfigFlag if empty
	ConfigFlag string

	// Wrap optionally rewrites the command, e.g. Sudo()
	Wrap CommandWrapper

	// Env is added to the inherited environment of every node
	Env []string

	// Dir is the working directory; the current one if empty
	Dir string

	// Logger receives node output, one record per line
	Logger *slog.Logger
}

// Launch implements Launcher
func (l *ExecLauncher) Launch(ctx context.Context, req LaunchRequest) (Process, error) {
	if len(req.Command) == 0 {
		return nil, fmt.Errorf("%s: %w", req.Name, ErrEmptyCommand)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binary, err := exec.LookPath(req.Command[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", req.Command[0], ErrBinaryNotFound, err)
	}

	args := req.ExpandArgs(req.Command[1:])
	if req.ConfigPath != "" {
		flag := l.ConfigFlag
		if flag == "" {
			flag = DefaultConfigFlag
		}
		args = append(args, flag+"="+req.ConfigPath)
	}

	name := binary
	if l.Wrap != nil {
		name, args = l.Wrap(binary, args)
	}

	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("node", req.Name)

	// exec.Command, not CommandContext: the Handle decides when the node dies
	cmd := exec.Command(name, args...)
	cmd.Dir = l.Dir
	cmd.Env = append(append(append(os.Environ(), l.Env...), req.NodeEnv()...), req.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := newLineWriter(logger, "stdout")
	stderr := newLineWriter(logger, "stderr")
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", req.Name, err)
	}

	return &execProcess{
		cmd:    cmd,
		wrap:   l.Wrap,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	wrap   CommandWrapper
	stdout *lineWriter
	stderr *lineWriter
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Interrupt() error {
	return p.signalGroup(syscall.SIGINT, "INT")
}

func (p *execProcess) Kill() error {
	return p.signalGroup(syscall.SIGKILL, "KILL")
}

func (p *execProcess) signalGroup(sig syscall.Signal, name string) error {
	pgid := p.cmd.Process.Pid

	if p.wrap == nil {
		err := syscall.Kill(-pgid, sig)
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}

	// the group may belong to another user, signal it with the same rights
	cmdName, args := p.wrap("kill", []string{"-" + name, "--", "-" + strconv.Itoa(pgid)})
	out, err := exec.Command(cmdName, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("kill -%s %d: %w: %s", name, pgid, err, out)
	}
	return nil
}

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	p.stdout.Flush()
	p.stderr.Flush()

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return code, nil
	}
	return code, err
}

func (p *execProcess) Close() error {
	p.stdout.Flush()
	p.stderr.Flush()
	return nil
}
