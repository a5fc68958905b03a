package main

import (
	"fmt"
	"os"

	"github.com/oukeidos/posync/internal/apperrors"
	"github.com/oukeidos/posync/internal/cleanup"
	"github.com/oukeidos/posync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func execute() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if cleanupErr := cleanup.RunAll(); cleanupErr != nil {
		fmt.Fprintln(os.Stderr, cleanupErr)
		if err == nil {
			err = cleanupErr
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apperrors.PublicMessage(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := syncOptions{}

	cmd := &cobra.Command{
		Use:   "posync",
		Short: "Synchronize Foreman .po translations between Transifex, Memsource and disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				_ = cmd.Usage()
				return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			if !hasAnyFlagSet(cmd) {
				return cmd.Help()
			}
			return runSync(cmd, &opts)
		},
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version.Info()
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetUsageTemplate(rootUsageTemplate)

	addSyncFlags(cmd, &opts)

	cmd.AddCommand(
		newEnvCmd(),
		newLanguagesCmd(),
		newResourcesCmd(),
	)

	cmd.InitDefaultCompletionCmd()
	for _, sub := range cmd.Commands() {
		if sub.Name() == "completion" {
			sub.SetUsageTemplate(subcommandUsageTemplate)
			break
		}
	}

	return cmd
}

func hasAnyFlagSet(cmd *cobra.Command) bool {
	changed := false
	cmd.Flags().Visit(func(_ *pflag.Flag) {
		changed = true
	})
	return changed
}
