package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/drmpack/internal/types"
)

const (
	autoselectAttr = "AUTOSELECT=YES"
	defaultAttr    = "DEFAULT=YES"
	keyTag         = "EXT-X-KEY"
	keyTagComment  = "##"
)

var dashLiveToStatic = strings.NewReplacer(
	`type='dynamic'`, `type='static'`,
	`type="dynamic"`, `type="static"`,
)

// FixHlsMasterDefault marks the first auto-selectable rendition as default.
// Some players pick none otherwise.
func FixHlsMasterDefault(text string) string {
	i := strings.Index(text, autoselectAttr)
	if i < 0 || strings.HasSuffix(text[:i], defaultAttr+",") {
		return text
	}
	return text[:i] + defaultAttr + "," + text[i:]
}

// StripKeyTag comments out every EXT-X-KEY tag not already commented out,
// so players use the key mapping of the sample code instead.
func StripKeyTag(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) + 16)

	for {
		i := strings.Index(text, keyTag)
		if i < 0 {
			sb.WriteString(text)
			break
		}

		sb.WriteString(text[:i])
		if !strings.HasSuffix(sb.String(), keyTagComment) {
			sb.WriteString(keyTagComment)
		}
		sb.WriteString(keyTag)

		text = text[i+len(keyTag):]
	}

	return sb.String()
}

// ConvertDashLiveToStatic turns the dynamic manifest written when using
// segment templates into an on-demand one.
func ConvertDashLiveToStatic(text string) string {
	return dashLiveToStatic.Replace(text)
}

// MediaPlaylistName is the name the packager gives to the media playlist
// of the i-th stream descriptor.
func MediaPlaylistName(i int) string {
	return fmt.Sprintf("stream_%d.m3u8", i)
}

// EditFile rewrites the whole file through fn.
func EditFile(path string, fn func(string) string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return &types.IOError{Op: "stat", Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &types.IOError{Op: "read", Path: path, Err: err}
	}

	if err := os.WriteFile(path, []byte(fn(string(data))), stat.Mode().Perm()); err != nil {
		return &types.IOError{Op: "write", Path: path, Err: err}
	}

	return nil
}

type Processor struct {
	logger zerolog.Logger
}

func New() *Processor {
	return &Processor{
		logger: log.With().Str("module", "manifest").Logger(),
	}
}

// Apply fixes up packager output in outputDir. Streams must be given in
// the order they were passed to the packager.
func (p *Processor) Apply(outputDir string, manifestType types.ManifestType, streams []types.StreamType) error {
	switch manifestType {
	case types.Hls:
		return p.applyHls(outputDir, streams)
	case types.Dash:
		return p.applyDash(outputDir)
	}
	return &types.ConfigurationError{Field: "manifest-type", Value: string(manifestType), Reason: `"hls" and "dash" are supported`}
}

func (p *Processor) applyHls(outputDir string, streams []types.StreamType) error {
	masterPath := filepath.Join(outputDir, types.Hls.ManifestName())

	var master string
	err := EditFile(masterPath, func(text string) string {
		master = StripKeyTag(FixHlsMasterDefault(text))
		return master
	})
	if err != nil {
		return err
	}

	p.inspectMaster(masterPath, master)

	for i, stream := range streams {
		playlistPath := filepath.Join(outputDir, MediaPlaylistName(i))
		if err := EditFile(playlistPath, StripKeyTag); err != nil {
			return err
		}

		p.logger.Debug().
			Str("stream", string(stream)).
			Str("path", playlistPath).
			Msg("key tags commented out")
	}

	return nil
}

func (p *Processor) applyDash(outputDir string) error {
	manifestPath := filepath.Join(outputDir, types.Dash.ManifestName())
	if err := EditFile(manifestPath, ConvertDashLiveToStatic); err != nil {
		return err
	}

	p.logger.Debug().Str("path", manifestPath).Msg("manifest converted to static")
	return nil
}

func (p *Processor) inspectMaster(path, text string) {
	info, err := InspectMaster(text)
	if err != nil {
		p.logger.Warn().Err(err).Str("path", path).Msg("master playlist could not be parsed")
		return
	}

	if info.Renditions > 0 && info.DefaultRenditions == 0 {
		p.logger.Warn().Str("path", path).Msg("master playlist has no default rendition")
		return
	}

	p.logger.Debug().
		Int("variants", info.Variants).
		Int("renditions", info.Renditions).
		Int("default-renditions", info.DefaultRenditions).
		Msg("master playlist fixed")
}
