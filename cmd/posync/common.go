package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/oukeidos/posync/internal/apperrors"
	"github.com/oukeidos/posync/internal/auth"
	"github.com/oukeidos/posync/internal/logger"
	"golang.org/x/term"
)

var (
	isTerminal    = term.IsTerminal
	getKey        = auth.GetKey
	getEnvKey     = auth.GetEnvKey
	getStatus     = auth.GetStatus
	saveKey       = auth.SaveKey
	deleteKey     = auth.DeleteKey
	promptForKey  = auth.PromptForAPIKey
	promptForLine = readLine
	lookupEnv     = os.LookupEnv
)

const (
	sourceKeychain = "Keychain"
	sourceEnv      = "Environment Variable"
	sourcePrompt   = "Terminal Prompt"
	sourceFlag     = "Flag"
)

func missingCredential(format string, args ...any) error {
	return apperrors.New(apperrors.KindConfig, fmt.Sprintf(format, args...), nil)
}

// resolveSecret finds the secret for service: keychain first, then the
// environment when allowed, then an interactive prompt.
func resolveSecret(service string, allowEnv, envOnly bool) (string, string, error) {
	cred, ok := auth.Lookup(service)
	if !ok {
		return "", "", fmt.Errorf("unknown service %q", service)
	}
	if envOnly {
		if key, ok := getEnvKey(service); ok {
			return key, sourceEnv, nil
		}
		return "", "", missingCredential("env-only set but %s is not set.", cred.EnvVar)
	}

	if key, source := getKey(service, false); key != "" {
		return key, source, nil
	}

	if allowEnv {
		if key, ok := getEnvKey(service); ok {
			return key, sourceEnv, nil
		}
	}

	interactive := isTerminal(int(os.Stdin.Fd()))
	if interactive {
		key, err := promptForKey(fmt.Sprintf("%s (press Enter to skip): ", cred.Label))
		if err != nil {
			return "", "", fmt.Errorf("error reading %s: %w", cred.Label, err)
		}
		if strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), sourcePrompt, nil
		}
	}

	if !interactive {
		return "", "", missingCredential("No %s available (non-interactive shell); run `posync env setup --service %s` or use --allow-env with %s.", cred.Label, service, cred.EnvVar)
	}
	if allowEnv {
		return "", "", missingCredential("%s is required; not found in keychain or %s.", cred.Label, cred.EnvVar)
	}
	return "", "", missingCredential("%s is required; not found in keychain (environment disabled by default; use --allow-env).", cred.Label)
}

// resolveMemsourceUser returns the login name from the flag, the
// environment when allowed, or a prompt.
func resolveMemsourceUser(flagValue string, allowEnv, envOnly bool) (string, string, error) {
	if user := strings.TrimSpace(flagValue); user != "" && !envOnly {
		return user, sourceFlag, nil
	}
	if allowEnv || envOnly {
		if user, ok := lookupEnv(auth.MemsourceUserEnvVar); ok && strings.TrimSpace(user) != "" {
			return strings.TrimSpace(user), sourceEnv, nil
		}
	}
	if !envOnly && isTerminal(int(os.Stdin.Fd())) {
		user, err := promptForLine("Memsource username: ")
		if err != nil {
			return "", "", fmt.Errorf("error reading Memsource username: %w", err)
		}
		if user != "" {
			return user, sourcePrompt, nil
		}
	}
	return "", "", missingCredential("Memsource username is required; use --memsource-user or %s with --allow-env.", auth.MemsourceUserEnvVar)
}

func readLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("Cancellation requested")
			cancel()
		case <-ctx.Done():
		}
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}
