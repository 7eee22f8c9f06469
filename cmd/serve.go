package cmd

import (
	"github.com/spf13/cobra"

	"github.com/m1k1o/drmpack"
	"github.com/m1k1o/drmpack/internal/config"
)

func init() {
	register(&cobra.Command{
		Use:   "serve",
		Short: "serve generated assets for playback testing",
		Long:  `serve the generated manifests, segments, README and sample code over http`,
		Args:  cobra.NoArgs,
		Run:   drmpack.Service.ServeCommand,
	}, commandSetup{
		configs: []config.Config{drmpack.Service.ServerConfig},
		watch:   true,
	})
}
