package main

import (
	"strings"
	"testing"

	"github.com/oukeidos/posync/internal/apperrors"
)

type keyStubs struct {
	promptCalls int
	keyCalls    int
	envCalls    int
}

func withKeyStubs(t *testing.T, terminal bool, promptVal string, keychainVal string, envVal string) (*keyStubs, func()) {
	t.Helper()
	stubs := &keyStubs{}

	prevIsTerminal := isTerminal
	prevPrompt := promptForKey
	prevGetKey := getKey
	prevGetEnv := getEnvKey

	isTerminal = func(_ int) bool { return terminal }
	promptForKey = func(_ string) (string, error) {
		stubs.promptCalls++
		return promptVal, nil
	}
	getKey = func(_ string, _ bool) (string, string) {
		stubs.keyCalls++
		if keychainVal == "" {
			return "", ""
		}
		return keychainVal, sourceKeychain
	}
	getEnvKey = func(_ string) (string, bool) {
		stubs.envCalls++
		if envVal == "" {
			return "", false
		}
		return envVal, true
	}

	restore := func() {
		isTerminal = prevIsTerminal
		promptForKey = prevPrompt
		getKey = prevGetKey
		getEnvKey = prevGetEnv
	}

	return stubs, restore
}

func withUserStubs(t *testing.T, envUser, promptUser string) func() {
	t.Helper()
	prevLookup := lookupEnv
	prevLine := promptForLine
	lookupEnv = func(name string) (string, bool) {
		if name != "MEMSOURCE_USERNAME" || envUser == "" {
			return "", false
		}
		return envUser, true
	}
	promptForLine = func(string) (string, error) { return promptUser, nil }
	return func() {
		lookupEnv = prevLookup
		promptForLine = prevLine
	}
}

func TestResolveSecret_KeychainFirst(t *testing.T) {
	stubs, restore := withKeyStubs(t, true, "", "keychain-token", "env-token")
	defer restore()

	key, source, err := resolveSecret("transifex", true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "keychain-token" || source != sourceKeychain {
		t.Fatalf("expected keychain key/source, got key=%q source=%q", key, source)
	}
	if stubs.envCalls != 0 {
		t.Fatalf("expected no env calls, got envCalls=%d", stubs.envCalls)
	}
}

func TestResolveSecret_EnvFallbackWhenAllowed(t *testing.T) {
	stubs, restore := withKeyStubs(t, false, "", "", "env-token")
	defer restore()

	key, source, err := resolveSecret("memsource", true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "env-token" || source != sourceEnv {
		t.Fatalf("expected env key/source, got key=%q source=%q", key, source)
	}
	if stubs.envCalls == 0 {
		t.Fatalf("expected env call")
	}
}

func TestResolveSecret_EnvDisabledError(t *testing.T) {
	stubs, restore := withKeyStubs(t, false, "", "", "env-token")
	defer restore()

	_, _, err := resolveSecret("transifex", false, false)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !apperrors.Is(err, apperrors.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if stubs.envCalls != 0 {
		t.Fatalf("expected no env calls, got envCalls=%d", stubs.envCalls)
	}
}

func TestResolveSecret_NonInteractiveNamesEnvVar(t *testing.T) {
	stubs, restore := withKeyStubs(t, false, "", "", "")
	defer restore()

	_, _, err := resolveSecret("transifex", false, false)
	if err == nil {
		t.Fatalf("expected error")
	}
	if stubs.promptCalls != 0 {
		t.Fatalf("expected no prompt, got promptCalls=%d", stubs.promptCalls)
	}
	if !strings.Contains(apperrors.PublicMessage(err), "TX_TOKEN") {
		t.Fatalf("expected message to name TX_TOKEN, got %q", apperrors.PublicMessage(err))
	}
}

func TestResolveSecret_EnvOnly(t *testing.T) {
	stubs, restore := withKeyStubs(t, true, "prompt-token", "keychain-token", "env-token")
	defer restore()

	key, source, err := resolveSecret("transifex", false, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "env-token" || source != sourceEnv {
		t.Fatalf("expected env key/source, got key=%q source=%q", key, source)
	}
	if stubs.promptCalls != 0 || stubs.keyCalls != 0 {
		t.Fatalf("expected no prompt/keychain calls, got promptCalls=%d keyCalls=%d", stubs.promptCalls, stubs.keyCalls)
	}
}

func TestResolveSecret_EnvOnlyMissing(t *testing.T) {
	_, restore := withKeyStubs(t, false, "", "keychain-token", "")
	defer restore()

	_, _, err := resolveSecret("memsource", false, true)
	if err == nil || !strings.Contains(apperrors.PublicMessage(err), "MEMSOURCE_PASSWORD") {
		t.Fatalf("expected MEMSOURCE_PASSWORD error, got %v", err)
	}
}

func TestResolveSecret_PromptFallback(t *testing.T) {
	stubs, restore := withKeyStubs(t, true, " prompt-token ", "", "")
	defer restore()

	key, source, err := resolveSecret("transifex", false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "prompt-token" || source != sourcePrompt {
		t.Fatalf("expected prompt key/source, got key=%q source=%q", key, source)
	}
	if stubs.keyCalls == 0 {
		t.Fatalf("expected keychain lookup before prompt")
	}
}

func TestResolveSecret_UnknownService(t *testing.T) {
	if _, _, err := resolveSecret("crowdin", true, false); err == nil {
		t.Fatalf("expected unknown service error")
	}
}

func TestResolveMemsourceUser(t *testing.T) {
	_, restoreKeys := withKeyStubs(t, false, "", "", "")
	defer restoreKeys()

	tests := []struct {
		name       string
		flag       string
		envUser    string
		allowEnv   bool
		envOnly    bool
		wantUser   string
		wantSource string
		wantErr    bool
	}{
		{name: "flag", flag: "alice", envUser: "bob", allowEnv: true, wantUser: "alice", wantSource: sourceFlag},
		{name: "env allowed", envUser: "bob", allowEnv: true, wantUser: "bob", wantSource: sourceEnv},
		{name: "env not allowed", envUser: "bob", wantErr: true},
		{name: "env only ignores flag", flag: "alice", envUser: "bob", envOnly: true, wantUser: "bob", wantSource: sourceEnv},
		{name: "nothing", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore := withUserStubs(t, tt.envUser, "")
			defer restore()

			user, source, err := resolveMemsourceUser(tt.flag, tt.allowEnv, tt.envOnly)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got user=%q", user)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if user != tt.wantUser || source != tt.wantSource {
				t.Fatalf("got user=%q source=%q, want %q %q", user, source, tt.wantUser, tt.wantSource)
			}
		})
	}
}

func TestResolveMemsourceUser_Prompt(t *testing.T) {
	_, restoreKeys := withKeyStubs(t, true, "", "", "")
	defer restoreKeys()
	restore := withUserStubs(t, "", "carol")
	defer restore()

	user, source, err := resolveMemsourceUser("", false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != "carol" || source != sourcePrompt {
		t.Fatalf("got user=%q source=%q", user, source)
	}
}
