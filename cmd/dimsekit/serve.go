package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/server"
	"github.com/caio-sobreiro/dimsenet/services"
	"github.com/caio-sobreiro/dimsenet/types"
)

type serveFlags struct {
	listen    string
	directory string
	synthetic int
}

func newServeCmd(ctx context.Context, a *app) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an archive answering echo, store, find, move, get and storage commitment",
		Long: `Run a DICOM archive. Instances are kept in memory; with a storage directory
they are also loaded from and written to it. C-MOVE destinations are resolved
through the peers table of the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.listen != "" {
				a.cfg.Listen = flags.listen
			}
			if flags.directory != "" {
				a.cfg.Storage.Directory = flags.directory
			}

			archive := services.NewArchive()
			if dir := a.cfg.Storage.Directory; dir != "" {
				n, err := archive.LoadDir(dir)
				if err != nil {
					return fmt.Errorf("load %s: %w", dir, err)
				}
				a.logger.Info("Loaded archive", "directory", dir, "instances", n)
			}
			if flags.synthetic > 0 {
				if err := addSyntheticStudy(archive, flags.synthetic); err != nil {
					return err
				}
				a.logger.Info("Generated synthetic study", "instances", flags.synthetic)
			}

			reg := archiveRegistry(archive, a.cfg.AETitle, a.cfg.Storage.Directory, a.cfg.Peers)
			err := server.ListenAndServe(ctx, a.cfg.Listen, a.cfg.AETitle, reg,
				server.WithLogger(a.logger),
				server.WithEngine(a.engine),
				server.WithReadTimeout(a.cfg.Timeouts.Read),
				server.WithWriteTimeout(a.cfg.Timeouts.Write),
				server.WithMaxPDULength(a.cfg.MaxPDULength),
			)
			switch {
			case err == nil:
				a.logger.Info("Server shutdown complete")
			case errors.Is(err, context.Canceled):
				a.logger.Info("Server stopped", "reason", err.Error())
			default:
				return fmt.Errorf("server terminated unexpectedly: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.listen, "listen", "l", "", "Listen address (overrides the config file)")
	cmd.Flags().StringVarP(&flags.directory, "dir", "d", "", "Storage directory (overrides the config file)")
	cmd.Flags().IntVar(&flags.synthetic, "synthetic", 0, "Add a synthetic CT study with this many instances")
	return cmd
}

// archiveRegistry wires every built-in service to archive.
func archiveRegistry(archive *services.Archive, aeTitle, directory string, peers map[string]string) *services.Registry {
	reg := services.NewRegistry()
	reg.RegisterHandler(types.CEchoRQ, services.NewEchoService())
	reg.RegisterHandler(types.CStoreRQ, services.NewStoreService(archive, directory))
	reg.RegisterHandler(types.CFindRQ, services.NewFindService(archive))
	reg.RegisterHandler(types.CMoveRQ, services.NewMoveService(archive, aeTitle, peers))
	reg.RegisterHandler(types.CGetRQ, services.NewGetService(archive))
	reg.RegisterHandler(types.NActionRQ, services.NewStorageCommitmentService(archive))
	return reg
}

// addSyntheticStudy puts n small CT instances of one series into archive.
func addSyntheticStudy(archive *services.Archive, n int) error {
	studyUID, seriesUID := dicom.NewUID(), dicom.NewUID()
	for i := 1; i <= n; i++ {
		ds := dicom.NewDataset()
		ds.AddElement(dicom.SOPClassUID, dicom.VR_UI, types.CTImageStorage)
		ds.AddElement(dicom.SOPInstanceUID, dicom.VR_UI, dicom.NewUID())
		ds.AddElement(dicom.StudyDate, dicom.VR_DA, "20250109")
		ds.AddElement(dicom.Modality, dicom.VR_CS, "CT")
		ds.AddElement(dicom.PatientName, dicom.VR_PN, "TEST^PATIENT")
		ds.AddElement(dicom.PatientID, dicom.VR_LO, "12345")
		ds.AddElement(dicom.StudyInstanceUID, dicom.VR_UI, studyUID)
		ds.AddElement(dicom.SeriesInstanceUID, dicom.VR_UI, seriesUID)
		ds.AddElement(dicom.InstanceNumber, dicom.VR_IS, fmt.Sprint(i))
		ds.AddElement(dicom.Rows, dicom.VR_US, uint16(16))
		ds.AddElement(dicom.Columns, dicom.VR_US, uint16(16))
		ds.AddElement(dicom.BitsAllocated, dicom.VR_US, uint16(16))
		ds.AddElement(dicom.PixelData, dicom.VR_OW, make([]byte, 16*16*2))
		if _, err := archive.Put(ds); err != nil {
			return err
		}
	}
	return nil
}
