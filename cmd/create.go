package cmd

import (
	"github.com/spf13/cobra"

	"github.com/m1k1o/drmpack"
	"github.com/m1k1o/drmpack/internal/config"
)

func init() {
	register(&cobra.Command{
		Use:   "create",
		Short: "package a source file with DRM",
		Long:  `encrypt a source file with shaka packager and write manifests, README and sample player code`,
		Args:  cobra.NoArgs,
		RunE:  drmpack.Service.CreateCommand,
	}, commandSetup{
		configs: []config.Config{drmpack.Service.CreateConfig},
		quiet:   true,
	})
}
