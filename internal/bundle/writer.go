package bundle

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/drmpack/internal/types"
)

// Shaka demo proxy in front of the Widevine UAT license server.
const WidevineLicenseProxyURL = "https://cwip-shaka-proxy.appspot.com/no_auth"

const (
	ReadmeFile = "README.md"
	CodeFile   = "sample-code.js"
)

type Vars struct {
	ManifestName string
	ManifestType types.ManifestType
	KeySystem    types.KeySystem

	// clearkey
	Keys []types.PsshRecord

	// widevine
	LicenseURL string
	ContentID  string
}

type Writer struct {
	logger   zerolog.Logger
	registry *Registry
}

func New(registry *Registry) *Writer {
	return &Writer{
		logger:   log.With().Str("module", "bundle").Logger(),
		registry: registry,
	}
}

// Write renders README.md and sample-code.js into outputDir, replacing existing files.
func (w *Writer) Write(outputDir string, vars Vars) error {
	set, err := w.registry.Lookup(vars.KeySystem)
	if err != nil {
		return err
	}

	if vars.KeySystem == types.Widevine && vars.LicenseURL == "" {
		vars.LicenseURL = WidevineLicenseProxyURL
	}

	files := []struct {
		name string
		tmpl *template.Template
	}{
		{ReadmeFile, set.Readme},
		{CodeFile, set.Code},
	}

	for _, file := range files {
		var buf bytes.Buffer
		if err := file.tmpl.Execute(&buf, vars); err != nil {
			return err
		}

		path := filepath.Join(outputDir, file.name)
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return &types.IOError{Op: "write", Path: path, Err: err}
		}

		w.logger.Debug().Str("path", path).Int("size", buf.Len()).Msg("bundle file written")
	}

	return nil
}
