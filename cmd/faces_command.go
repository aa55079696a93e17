package cmd

import (
	"fmt"

	"github.com/camden-git/facesession/services"
	"github.com/spf13/cobra"
)

func newFacesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "faces",
		Short: "List the faces of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := services.CurrentFaces(a.sessions)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "The current session has no faces.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(faceHeaders, faceRows(records), 3))
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d face(s) identified\n", identifiedCount(records), len(records))
			return nil
		},
	}
}
