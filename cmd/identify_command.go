package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIdentifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "identify <track_id>",
		Short: "Identify one face of the current session and frontalize it",
		Args:  cobra.ExactArgs(1),
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
			a.loadVision()

			res, err := a.identification(nil).Identify(args[0])
			if err != nil {
				return err
			}
			row := []string{args[0], res.Match, formatScore(res.Score), formatOptional(res.FrontalizedImageURL)}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Track", "Match", "Score", "Frontal"}, [][]string{row}, 3))
			if res.Note != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.Note)
			}
			return nil
		},
	}
}
