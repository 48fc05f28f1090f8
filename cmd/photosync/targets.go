package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Skryldev/photosync/core"
)

func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets [hash]",
		Short: "List the object names published for each photo",
		Args:  cobra.MaximumNArgs(1),
		// No config is needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := "{sha256}"
			if len(args) == 1 {
				hash = args[0]
			}
			for _, t := range core.CanonicalTargets() {
				fmt.Fprintln(cmd.OutOrStdout(), t.ObjectName(hash))
			}
			return nil
		},
	}
}
