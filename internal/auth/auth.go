package auth

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const serviceName = "posync"

const (
	Transifex = "transifex"
	Memsource = "memsource"
)

// Credential describes where the secret for one backend lives.
type Credential struct {
	Label   string
	Account string
	EnvVar  string
}

var credentials = map[string]Credential{
	Transifex: {Label: "Transifex API token", Account: "transifex-token", EnvVar: "TX_TOKEN"},
	Memsource: {Label: "Memsource password", Account: "memsource-password", EnvVar: "MEMSOURCE_PASSWORD"},
}

// MemsourceUserEnvVar names the environment variable holding the Memsource login.
const MemsourceUserEnvVar = "MEMSOURCE_USERNAME"

// Lookup returns the credential description for service.
func Lookup(service string) (Credential, bool) {
	c, ok := credentials[strings.ToLower(strings.TrimSpace(service))]
	return c, ok
}

// Services lists the services that store a secret.
func Services() []string {
	out := make([]string, 0, len(credentials))
	for name := range credentials {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func mustLookup(service string) (Credential, error) {
	c, ok := Lookup(service)
	if !ok {
		return Credential{}, fmt.Errorf("unknown service %q (expected %s)", service, strings.Join(Services(), " or "))
	}
	return c, nil
}

// GetKey retrieves the secret for a service from the keychain and, when
// allowEnv is set, from its environment variable.
func GetKey(service string, allowEnv bool) (string, string) {
	c, err := mustLookup(service)
	if err != nil {
		return "", ""
	}

	key, err := keyring.Get(serviceName, c.Account)
	if err == nil && strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key), "Keychain"
	}

	if allowEnv {
		if key, ok := GetEnvKey(service); ok {
			return key, "Environment Variable"
		}
	}

	return "", ""
}

// SaveKey saves the secret for a service to the OS Keychain.
func SaveKey(service, key string) error {
	c, err := mustLookup(service)
	if err != nil {
		return err
	}
	return keyring.Set(serviceName, c.Account, strings.TrimSpace(key))
}

// DeleteKey removes the secret for a service from the OS Keychain.
func DeleteKey(service string) error {
	c, err := mustLookup(service)
	if err != nil {
		return err
	}
	return keyring.Delete(serviceName, c.Account)
}

// GetStatus returns whether a secret exists for a service in the keychain.
func GetStatus(service string) bool {
	c, err := mustLookup(service)
	if err != nil {
		return false
	}
	key, err := keyring.Get(serviceName, c.Account)
	if err != nil || key == "" {
		return false
	}
	return true
}

// PromptForAPIKey securely prompts the user for a secret.
func PromptForAPIKey(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(os.Stderr)
	return strings.TrimSpace(string(bytePassword)), nil
}

// GetEnvKey retrieves the secret from environment variables only.
func GetEnvKey(service string) (string, bool) {
	c, err := mustLookup(service)
	if err != nil {
		return "", false
	}
	key := strings.TrimSpace(os.Getenv(c.EnvVar))
	if key == "" {
		return "", false
	}
	return key, true
}
