package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"oncoqa/internal/registry"
)

func newModelsCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models found in the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := registry.LoadDir(a.cfg.CacheDir)
			if err != nil {
				return err
			}
			a.log.Debug().Str("dir", a.cfg.CacheDir).Int("count", len(models)).Msg("event=models_scanned")
			if jsonOut {
				return json.NewEncoder(a.stdout).Encode(models)
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tQUANT\tPATH")
			for _, mdl := range models {
				q := mdl.Quant
				if q == "" {
					q = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", mdl.ID, q, mdl.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print models as JSON")
	return cmd
}
