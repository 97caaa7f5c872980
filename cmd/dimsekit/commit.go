package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
	"github.com/caio-sobreiro/dimsenet/services"
	"github.com/caio-sobreiro/dimsenet/types"
)

func newCommitCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit <peer> <file|dir>...",
		Short: "Request storage commitment for instances",
		Long: `Send a Storage Commitment Push Model N-ACTION for the given files and wait
for the N-EVENT-REPORT on the same association.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandPaths(args[1:])
			if err != nil {
				return err
			}
			var refs []*dicom.Dataset
			for _, path := range paths {
				f, err := dicom.ReadFile(path)
				if err != nil {
					a.logger.Warn("Skipping unreadable file", "path", path, "error", err)
					continue
				}
				ref := dicom.NewDataset()
				ref.AddElement(dicom.ReferencedSOPClassUID, dicom.VR_UI, f.Dataset.GetString(dicom.SOPClassUID))
				ref.AddElement(dicom.ReferencedSOPInstanceUID, dicom.VR_UI, f.Dataset.GetString(dicom.SOPInstanceUID))
				refs = append(refs, ref)
			}
			if len(refs) == 0 {
				return fmt.Errorf("no DICOM files to commit")
			}

			transaction := dicom.NewUID()
			info := dicom.NewDataset()
			info.AddElement(dicom.TransactionUID, dicom.VR_UI, transaction)
			info.AddElement(dicom.ReferencedSOPSequence, dicom.VR_SQ, refs)

			assoc, err := a.connect(ctx, args[0], []string{types.StorageCommitmentPushModelSOPClass})
			if err != nil {
				return err
			}
			defer a.release(assoc)

			if _, err := assoc.SendNAction(types.StorageCommitmentPushModelSOPClass,
				types.StorageCommitmentPushModelSOPInstance, services.CommitmentRequestAction, info); err != nil {
				return err
			}
			report, err := assoc.ReceiveNEventReport(0, dimse.StatusSuccess)
			if err != nil {
				return err
			}
			if report.Dataset == nil {
				return fmt.Errorf("event report without event information")
			}
			if report.Dataset.GetString(dicom.TransactionUID) != transaction {
				a.logger.Warn("Event report for another transaction", "transaction_uid", report.Dataset.GetString(dicom.TransactionUID))
			}

			out := cmd.OutOrStdout()
			for _, ref := range report.Dataset.GetSequence(dicom.ReferencedSOPSequence) {
				fmt.Fprintf(out, "committed %s\n", ref.GetString(dicom.ReferencedSOPInstanceUID))
			}
			failed := report.Dataset.GetSequence(dicom.FailedSOPSequence)
			for _, ref := range failed {
				reason, _ := ref.GetUint16(dicom.FailureReason)
				fmt.Fprintf(out, "failed    %s (reason 0x%04X)\n", ref.GetString(dicom.ReferencedSOPInstanceUID), reason)
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d instances not committed", len(failed), len(refs))
			}
			return nil
		},
	}
	return cmd
}
