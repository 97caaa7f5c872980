package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caio-sobreiro/dimsenet/client"
	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/dimse"
)

// storeItem is one file to send.
type storeItem struct {
	path        string
	sopClass    string
	sopInstance string
	// dataset is set when overrides apply; otherwise the file is streamed.
	dataset *dicom.Dataset
}

func newStoreCmd(ctx context.Context, a *app) *cobra.Command {
	var (
		keys        []string
		stopOnError bool
	)
	cmd := &cobra.Command{
		Use:   "store <peer> <file|dir>...",
		Short: "Send instances with C-STORE",
		Long: `Send Part 10 files with C-STORE. Directories are walked.
With -k the given attributes replace those of every file before sending.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseKeys(keys)
			if err != nil {
				return err
			}
			paths, err := expandPaths(args[1:])
			if err != nil {
				return err
			}

			var (
				items   []storeItem
				classes []string
				seen    = map[string]bool{}
			)
			for _, path := range paths {
				f, err := dicom.ReadFile(path)
				if err != nil {
					a.logger.Warn("Skipping unreadable file", "path", path, "error", err)
					continue
				}
				ds := f.Dataset
				if overrides.Len() > 0 {
					ds = dicom.Merge(ds, overrides)
				}
				item := storeItem{
					path:        path,
					sopClass:    ds.GetString(dicom.SOPClassUID),
					sopInstance: ds.GetString(dicom.SOPInstanceUID),
				}
				if item.sopClass == "" || item.sopInstance == "" {
					a.logger.Warn("Skipping file without SOP identity", "path", path)
					continue
				}
				if overrides.Len() > 0 {
					item.dataset = ds
				}
				items = append(items, item)
				if !seen[item.sopClass] {
					seen[item.sopClass] = true
					classes = append(classes, item.sopClass)
				}
			}
			if len(items) == 0 {
				return fmt.Errorf("no DICOM files to send")
			}

			assoc, err := a.connect(ctx, args[0], classes)
			if err != nil {
				return err
			}
			defer a.release(assoc)

			var failed int
			for _, item := range items {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				rsp, err := sendItem(assoc, item)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", item.path, err)
					if stopOnError {
						break
					}
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", item.path, dimse.StatusString(dimse.ServiceStore, rsp.Status))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d instances not stored", failed, len(items))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&keys, "key", "k", nil, "Override an attribute (Keyword=value)")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "Stop at the first failed instance")
	return cmd
}

func sendItem(assoc *client.Association, item storeItem) (*client.CStoreResponse, error) {
	req := &client.CStoreRequest{
		SOPClassUID:    item.sopClass,
		SOPInstanceUID: item.sopInstance,
		Dataset:        item.dataset,
	}
	if item.dataset == nil {
		req.File = item.path
	}
	return assoc.SendCStore(req)
}
