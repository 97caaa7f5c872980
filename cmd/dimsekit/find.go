package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caio-sobreiro/dimsenet/client"
	"github.com/caio-sobreiro/dimsenet/dimse"
)

func newFindCmd(ctx context.Context, a *app) *cobra.Command {
	var (
		keys       []string
		level      string
		model      string
		maxMatches int
	)
	cmd := &cobra.Command{
		Use:   "find <peer>",
		Short: "Query a peer with C-FIND",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := lookupModel(model)
			if err != nil {
				return err
			}
			identifier, err := queryKeys(level, keys)
			if err != nil {
				return err
			}

			assoc, err := a.connect(ctx, args[0], []string{m.find})
			if err != nil {
				return err
			}
			defer a.release(assoc)

			out := cmd.OutOrStdout()
			matches := 0
			responses, err := assoc.SendCFind(&client.CFindRequest{
				SOPClassUID: m.find,
				Dataset:     identifier,
				OnResponse: func(rsp *client.CFindResponse) bool {
					matches++
					fmt.Fprintf(out, "# match %d\n%s\n", matches, rsp.Dataset)
					// Returning false sends a C-CANCEL.
					return maxMatches <= 0 || matches < maxMatches
				},
			})
			if err != nil {
				return err
			}
			final := responses[len(responses)-1]
			fmt.Fprintf(out, "%d matches, %s\n", matches, dimse.StatusString(dimse.ServiceFind, final.Status))
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&keys, "key", "k", nil, "Query key (Keyword=value)")
	cmd.Flags().StringVarP(&level, "level", "l", "STUDY", "Query level (PATIENT, STUDY, SERIES, IMAGE)")
	cmd.Flags().StringVarP(&model, "model", "m", "study", "Information model (study, patient, psonly, worklist)")
	cmd.Flags().IntVar(&maxMatches, "max", 0, "Cancel the query after this many matches")
	return cmd
}
