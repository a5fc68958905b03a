package main

import (
	"context"
	"fmt"
	"time"

	"github.com/oukeidos/posync/internal/catalog"
	"github.com/oukeidos/posync/internal/httpclient"
	"github.com/oukeidos/posync/internal/language"
	"github.com/spf13/cobra"
)

func newLanguagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List the languages every backend must provide",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Required Languages:")
			for _, code := range language.Codes() {
				l, _ := language.GetLanguage(code)
				fmt.Fprintf(cmd.OutOrStdout(), "  %-28s [%s]\n", l.Name, l.Code)
			}
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newResourcesCmd() *cobra.Command {
	var indexURL string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "Resolve the Transifex resources from the plugin index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			resolver := catalog.NewResolver(httpclient.NewResty("", httpclient.GetDefaultClient()), indexURL)
			names, err := resolver.Resolve(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.Flags().StringVar(&indexURL, "catalog-url", catalog.DefaultURL, "Plugin index to resolve")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Give up after this long")
	return cmd
}
