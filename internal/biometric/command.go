package biometric

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Exit codes understood from the verification command
const (
	ExitCancelled   = 2
	ExitUnsupported = 3
)

// CommandPlatform delegates verification to an external program such as a fingerprint
// helper. The command receives BIOMETRIC_USER_ID and BIOMETRIC_CHALLENGE (base64) in its
// environment and exits 0 on success, ExitCancelled when the user dismissed the prompt and
// ExitUnsupported when no authenticator is enrolled. The optional capability command exits 0
// when an authenticator is present.
type CommandPlatform struct {
	Command           string
	CapabilityCommand string
	Env               []string
}

// NewCommandPlatform returns a platform for command, or Unavailable when command is empty
func NewCommandPlatform(command, capability string) Platform {
	if strings.TrimSpace(command) == "" {
		return Unavailable{}
	}
	return &CommandPlatform{Command: command, CapabilityCommand: capability}
}

func (p *CommandPlatform) IsSupported() bool {
	fields := strings.Fields(p.Command)
	if len(fields) == 0 {
		return false
	}
	_, err := exec.LookPath(fields[0])
	return err == nil
}

func (p *CommandPlatform) IsDeviceCapable(ctx context.Context) (bool, error) {
	if strings.TrimSpace(p.CapabilityCommand) == "" {
		return true, nil
	}

	err := p.command(ctx, p.CapabilityCommand, nil).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("failed to run capability command: %w", err)
}

func (p *CommandPlatform) RequestAssertion(ctx context.Context, req AssertionRequest) error {
	env := []string{
		"BIOMETRIC_USER_ID=" + strconv.FormatInt(req.UserID, 10),
		"BIOMETRIC_CHALLENGE=" + base64.StdEncoding.EncodeToString(req.Challenge),
	}

	cmd := p.command(ctx, p.Command, env)
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	if ctx.Err() != nil {
		return ErrUserCancelled
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case ExitCancelled:
			return ErrUserCancelled
		case ExitUnsupported:
			return ErrNotSupported
		}
		return fmt.Errorf("verification command exited with status %d", exitErr.ExitCode())
	}
	return fmt.Errorf("failed to run verification command: %w", err)
}

func (p *CommandPlatform) command(ctx context.Context, command string, extraEnv []string) *exec.Cmd {
	fields := strings.Fields(command)
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Env = append(append(os.Environ(), p.Env...), extraEnv...)
	return cmd
}
