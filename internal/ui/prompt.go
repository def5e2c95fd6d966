package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/huh"

	"github.com/imamik/proxmate/internal/platform/proxmox"
)

// PasswordEnvVar holds the Proxmox password for non-interactive use.
const PasswordEnvVar = "PROXMOX_PASSWORD"

// ErrNoPassword is returned when no password is set and no terminal is
// available to ask for one.
var ErrNoPassword = errors.New("no password available: set " + PasswordEnvVar + " or run in a terminal")

var (
	lookupEnv   = os.LookupEnv
	stdinIsTTY  = func() bool { return IsTerminal(os.Stdin) }
	askPassword = promptPassword
)

// PasswordSource returns the password from the environment, or asks for it
// on the terminal the first time it is needed. The answer is remembered.
func PasswordSource(username string) proxmox.PasswordSource {
	var (
		mu       sync.Mutex
		password string
	)
	return func(ctx context.Context) (string, error) {
		if pw, ok := lookupEnv(PasswordEnvVar); ok && pw != "" {
			return pw, nil
		}

		mu.Lock()
		defer mu.Unlock()
		if password != "" {
			return password, nil
		}
		if !stdinIsTTY() {
			return "", ErrNoPassword
		}
		pw, err := askPassword(ctx, username)
		if err != nil {
			return "", err
		}
		password = pw
		return pw, nil
	}
}

func promptPassword(ctx context.Context, username string) (string, error) {
	var password string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Proxmox password for %s", username)).
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(validatePassword),
		),
	).RunWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("password prompt: %w", err)
	}
	return password, nil
}

func validatePassword(s string) error {
	if s == "" {
		return errors.New("password is required")
	}
	return nil
}
