package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"teamflow/internal/invite"
)

func inviteCodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite-code",
		Short: "Print freshly generated invitation codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("count")
			if n < 1 {
				return fmt.Errorf("count must be positive")
			}
			gen := invite.NewGenerator()
			for i := 0; i < n; i++ {
				fmt.Fprintln(cmd.OutOrStdout(), gen.Code())
			}
			return nil
		},
	}
	cmd.Flags().IntP("count", "n", 1, "number of codes to print")
	return cmd
}
