package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"oncoqa/internal/config"
	"oncoqa/internal/manager"
)

// statusReport describes what the configured backend would load. It is
// computed without loading the model.
type statusReport struct {
	Backend   string                `json:"backend"`
	ModelID   string                `json:"model_id"`
	Quantized bool                  `json:"quantized"`
	LoadMode  string                `json:"load_mode"`
	Sanity    *manager.SanityReport `json:"sanity,omitempty"`
	Server    string                `json:"server_url,omitempty"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured model and whether the backend can serve it (does not load the model)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _ := manager.ParseLoadMode(a.cfg.LoadMode)
			rep := statusReport{
				Backend:   a.cfg.Backend,
				ModelID:   a.cfg.ModelID,
				Quantized: !a.cfg.FullPrecision,
				LoadMode:  string(mode),
			}
			if a.cfg.Backend == config.BackendServer {
				rep.Server = a.cfg.ServerURL
			} else {
				s := manager.SanityCheck(a.cfg.CacheDir, a.cfg.ModelID, !a.cfg.FullPrecision)
				rep.Sanity = &s
			}
			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
}
