package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newIngestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <video>",
		Short: "Replace the current session with the faces found in a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open video: %w", err)
			}
			defer f.Close()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			a.loadVision()

			records, err := a.ingestion(nil, a.purger(true)).Ingest(filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d face(s) in %s\n", len(records), filepath.Base(args[0]))
			if len(records) > 0 {
				fmt.Fprintln(out, renderTable(faceHeaders, faceRows(records), 3))
			}
			return nil
		},
	}
}
