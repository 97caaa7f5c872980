package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caio-sobreiro/dimsenet/dimse"
	"github.com/caio-sobreiro/dimsenet/types"
)

func newEchoCmd(ctx context.Context, a *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "echo <peer>",
		Short: "Verify a peer with C-ECHO",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assoc, err := a.connect(ctx, args[0], []string{types.VerificationSOPClass})
			if err != nil {
				return err
			}
			defer a.release(assoc)

			for i := 0; i < count; i++ {
				rsp, err := assoc.SendCEcho(0)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "C-ECHO %d: %s\n", rsp.MessageID, dimse.StatusString(dimse.ServiceEcho, rsp.Status))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "c", 1, "Number of C-ECHO requests")
	return cmd
}
