package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/caio-sobreiro/dimsenet/client"
	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	"github.com/caio-sobreiro/dimsenet/types"
)

type retrieveFlags struct {
	keys  []string
	level string
	model string
	out   string
}

func (f *retrieveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.keys, "key", "k", nil, "Retrieve key (Keyword=value)")
	cmd.Flags().StringVarP(&f.level, "level", "l", "STUDY", "Retrieve level (PATIENT, STUDY, SERIES, IMAGE)")
	cmd.Flags().StringVarP(&f.model, "model", "m", "study", "Information model (study, patient, psonly)")
	cmd.Flags().StringVarP(&f.out, "out", "o", ".", "Directory for received instances")
}

func count(n *uint16) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprint(*n)
}

func printRetrieve(w io.Writer, rsp *client.RetrieveResponse, service dimse.Service) {
	fmt.Fprintf(w, "%s: remaining %s, completed %s, failed %s, warning %s\n",
		dimse.StatusString(service, rsp.Status),
		count(rsp.NumberOfRemainingSuboperations),
		count(rsp.NumberOfCompletedSuboperations),
		count(rsp.NumberOfFailedSuboperations),
		count(rsp.NumberOfWarningSuboperations))
	if rsp.Identifier != nil {
		if failed := rsp.Identifier.GetStrings(dicom.FailedSOPInstanceUIDList); len(failed) > 0 {
			fmt.Fprintf(w, "failed instances: %v\n", failed)
		}
	}
}

func newMoveCmd(ctx context.Context, a *app) *cobra.Command {
	flags := &retrieveFlags{}
	var destination string
	cmd := &cobra.Command{
		Use:   "move <peer>",
		Short: "Retrieve with C-MOVE",
		Long: `Ask a peer to send matching instances to a destination AE with C-MOVE.
When the destination is our own AE title, the sub-associations are accepted on
the configured listen address and the instances written to --out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := lookupModel(flags.model)
			if err != nil {
				return err
			}
			if m.move == "" {
				return fmt.Errorf("model %s has no C-MOVE", flags.model)
			}
			identifier, err := queryKeys(flags.level, flags.keys)
			if err != nil {
				return err
			}
			if destination == "" {
				destination = a.cfg.AETitle
			}

			req := &client.CMoveRequest{
				SOPClassUID: m.move,
				Destination: destination,
				Dataset:     identifier,
			}
			if destination == a.cfg.AETitle {
				subs, err := client.ListenSubAssociations(a.cfg.Listen, client.SubAssociationConfig{
					AETitle:      a.cfg.AETitle,
					MaxPDULength: a.cfg.MaxPDULength,
					ReadTimeout:  a.cfg.Timeouts.Read,
					Sink:         client.StoreSink{Directory: flags.out},
					Engine:       a.engine,
					Logger:       a.logger,
				})
				if err != nil {
					return err
				}
				defer subs.Close()
				req.SubAssociations = subs
			}

			assoc, err := a.connect(ctx, args[0], []string{m.move})
			if err != nil {
				return err
			}
			defer a.release(assoc)

			out := cmd.OutOrStdout()
			req.OnResponse = func(rsp *client.CMoveResponse) bool {
				printRetrieve(out, rsp, dimse.ServiceMove)
				return ctx.Err() == nil
			}
			responses, err := assoc.SendCMove(req)
			if len(responses) > 0 {
				printRetrieve(out, responses[len(responses)-1], dimse.ServiceMove)
			}
			if req.SubAssociations != nil {
				fmt.Fprintf(out, "%d instances received\n", req.SubAssociations.Received)
			}
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&destination, "dest", "d", "", "Move destination AE title (default: our AE title)")
	return cmd
}

func newGetCmd(ctx context.Context, a *app) *cobra.Command {
	flags := &retrieveFlags{}
	var sopClasses []string
	cmd := &cobra.Command{
		Use:   "get <peer>",
		Short: "Retrieve with C-GET",
		Long: `Retrieve matching instances with C-GET; they arrive on the same association
and are written to --out. Only the proposed storage SOP classes can be sent
back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := lookupModel(flags.model)
			if err != nil {
				return err
			}
			if m.get == "" {
				return fmt.Errorf("model %s has no C-GET", flags.model)
			}
			identifier, err := queryKeys(flags.level, flags.keys)
			if err != nil {
				return err
			}
			if len(sopClasses) == 0 {
				sopClasses = types.CommonStorageSOPClasses()
			}

			assoc, err := a.connect(ctx, args[0], append([]string{m.get}, sopClasses...))
			if err != nil {
				return err
			}
			defer a.release(assoc)

			out := cmd.OutOrStdout()
			received := 0
			responses, err := assoc.SendCGet(&client.CGetRequest{
				SOPClassUID: m.get,
				Dataset:     identifier,
				Sink: client.StoreSink{
					Directory: flags.out,
					OnStore: func(ev *dimse.StoreEvent) {
						if ev.Progress.State == dimse.ProgressEnd && ev.Response.Status == dimse.StatusSuccess {
							received++
						}
					},
				},
				OnResponse: func(rsp *client.CGetResponse) bool {
					printRetrieve(out, rsp, dimse.ServiceGet)
					return ctx.Err() == nil
				},
			})
			if len(responses) > 0 {
				printRetrieve(out, responses[len(responses)-1], dimse.ServiceGet)
			}
			fmt.Fprintf(out, "%d instances received\n", received)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&sopClasses, "sop-class", nil, "Storage SOP class to accept (repeatable; default: common image classes)")
	return cmd
}
