package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/m1k1o/drmpack/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("failed to execute command")
		os.Exit(1)
	}
}
