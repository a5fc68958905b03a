package main

import (
	"fmt"
	"strings"

	"github.com/oukeidos/posync/internal/auth"
	"github.com/spf13/cobra"
)

type envOptions struct {
	service string
}

func newEnvCmd() *cobra.Command {
	opts := envOptions{}
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage backend credentials in the OS keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvStatus(cmd, &opts)
		},
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.PersistentFlags().StringVar(&opts.service, "service", auth.Transifex,
		"Service to manage ("+strings.Join(auth.Services(), " or ")+")")

	cmd.AddCommand(
		newEnvSetupCmd(&opts),
		newEnvDeleteCmd(&opts),
		newEnvStatusCmd(&opts),
	)
	return cmd
}

func newEnvSetupCmd(opts *envOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Save a secret to the keychain (prompt only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvSetup(cmd, opts)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newEnvDeleteCmd(opts *envOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a secret from the keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvDelete(cmd, opts)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newEnvStatusCmd(opts *envOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show secret status (default if no action given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvStatus(cmd, opts)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func envService(opts *envOptions) (string, auth.Credential, error) {
	svc := strings.ToLower(strings.TrimSpace(opts.service))
	cred, ok := auth.Lookup(svc)
	if !ok {
		return "", auth.Credential{}, fmt.Errorf("invalid service %q. Must be one of: %s", opts.service, strings.Join(auth.Services(), ", "))
	}
	return svc, cred, nil
}

func runEnvSetup(cmd *cobra.Command, opts *envOptions) error {
	svc, cred, err := envService(opts)
	if err != nil {
		return err
	}
	secret, err := promptForKey(cred.Label + ": ")
	if err != nil {
		return fmt.Errorf("error reading %s: %w", cred.Label, err)
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("%s is required for setup", cred.Label)
	}
	if err := saveKey(svc, secret); err != nil {
		return fmt.Errorf("error saving %s: %w", cred.Label, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to keychain.\n", cred.Label)
	return nil
}

func runEnvDelete(cmd *cobra.Command, opts *envOptions) error {
	svc, cred, err := envService(opts)
	if err != nil {
		return err
	}
	if err := deleteKey(svc); err != nil {
		return fmt.Errorf("error deleting %s: %w", cred.Label, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s from keychain.\n", cred.Label)
	return nil
}

func runEnvStatus(cmd *cobra.Command, opts *envOptions) error {
	svc, cred, err := envService(opts)
	if err != nil {
		return err
	}

	if getStatus(svc) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: Found (source=%s)\n", cred.Label, sourceKeychain)
		return nil
	}
	if envKey, ok := getEnvKey(svc); ok && envKey != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: Found (source=%s %s; disabled by default, use --allow-env)\n", cred.Label, sourceEnv, cred.EnvVar)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: Not Found (keychain empty, %s not set)\n", cred.Label, cred.EnvVar)
	return nil
}
