package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fieldsync/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var serverFlag string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, the state lock, the manifest, and server reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cmd.Context(), cfg, serverFlag)
			for _, line := range renderSectionHeader("fieldsync doctor", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range renderCheckLines(results, colorize) {
				fmt.Fprintln(out, line)
			}
			if preflight.Failed(results) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&serverFlag, "server", "s", "", "Inference server base URL (overrides server.url)")
	return cmd
}
