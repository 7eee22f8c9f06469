package packager

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/drmpack/internal/process"
	"github.com/m1k1o/drmpack/internal/types"
)

// Widevine UAT test credentials, public demo values.
const (
	WidevineKeyServerURL  = "https://license.uat.widevine.com/cenc/getcontentkey/widevine_test"
	WidevineSigner        = "widevine_test"
	WidevineAESSigningKey = "1ae8ccd0e7985cc0b6203a55855a1034afc252980e970ca90e5202689f947ab9"
	WidevineAESSigningIV  = "d58ce954203b7c9a9a9d467f59839249"
)

type Request struct {
	SourcePath      string
	OutputDir       string
	ManifestType    types.ManifestType
	KeySystem       types.KeySystem
	SegmentDuration float64
	SegmentTemplate bool
	Tracks          []types.Track

	PsshHex   string // clearkey, combined pssh of all tracks
	ContentID string // widevine
}

func (r Request) ManifestPath() string {
	return filepath.Join(r.OutputDir, r.ManifestType.ManifestName())
}

// Args builds the full packager argument list.
func Args(req Request) ([]string, error) {
	if len(req.Tracks) == 0 {
		return nil, &types.ConfigurationError{Field: "tracks", Reason: "at least one track is required"}
	}

	var manifestFlag string
	switch req.ManifestType {
	case types.Dash:
		manifestFlag = "--mpd_output"
	case types.Hls:
		manifestFlag = "--hls_master_playlist_output"
		if req.SegmentTemplate {
			return nil, &types.ConfigurationError{Field: "segment-template", Reason: "segment templates are only supported for dash"}
		}
	default:
		return nil, &types.ConfigurationError{Field: "manifest-type", Value: string(req.ManifestType), Reason: `"hls" and "dash" are supported`}
	}

	args := []string{}
	for _, track := range req.Tracks {
		args = append(args, StreamDescriptor(req, track.Stream))
	}

	switch req.KeySystem {
	case types.Clearkey:
		if req.PsshHex == "" {
			return nil, &types.ConfigurationError{Field: "pssh", Reason: "clearkey packaging requires a pssh"}
		}

		args = append(args, "--enable_raw_key_encryption")
		args = append(args, segmentDurationArgs(req.SegmentDuration)...)
		args = append(args,
			"--keys", keysArg(req.Tracks),
			"--pssh", req.PsshHex,
		)
	case types.Widevine:
		if req.ContentID == "" {
			return nil, &types.ConfigurationError{Field: "content-id", Reason: "widevine packaging requires a content id"}
		}

		args = append(args,
			"--enable_widevine_encryption",
			"--key_server_url", WidevineKeyServerURL,
			"--content_id", req.ContentID,
			"--signer", WidevineSigner,
			"--aes_signing_key", WidevineAESSigningKey,
			"--aes_signing_iv", WidevineAESSigningIV,
		)
		args = append(args, segmentDurationArgs(req.SegmentDuration)...)
	default:
		return nil, &types.ConfigurationError{Field: "key-system", Value: string(req.KeySystem), Reason: `"clearkey" and "widevine" are supported`}
	}

	return append(args, manifestFlag, req.ManifestPath()), nil
}

// StreamDescriptor returns the packager stream descriptor of a single track.
func StreamDescriptor(req Request, stream types.StreamType) string {
	fields := []string{
		"in=" + req.SourcePath,
		"stream=" + string(stream),
	}

	if req.SegmentTemplate {
		dir := filepath.Join(req.OutputDir, string(stream))
		fields = append(fields,
			"init_segment="+filepath.Join(dir, "init.mp4"),
			"segment_template="+filepath.Join(dir, "$Number$.m4s"),
		)
	} else {
		fields = append(fields, "output="+filepath.Join(req.OutputDir, fmt.Sprintf("%s-out.mp4", stream)))
	}

	fields = append(fields, "drm_label="+stream.DRMLabel())
	return strings.Join(fields, ",")
}

func keysArg(tracks []types.Track) string {
	keys := make([]string, len(tracks))
	for i, track := range tracks {
		keys[i] = fmt.Sprintf("label=%s:key_id=%s:key=%s", track.Stream.DRMLabel(), track.Key.KeyID, track.Key.Key)
	}
	return strings.Join(keys, ",")
}

func segmentDurationArgs(duration float64) []string {
	if duration <= 0 {
		return nil
	}
	return []string{"--segment_duration", strconv.FormatFloat(duration, 'f', -1, 64)}
}

type Packager struct {
	logger zerolog.Logger
	runner process.Runner
	binary string
}

func New(runner process.Runner, binary string) *Packager {
	return &Packager{
		logger: log.With().Str("module", "packager").Logger(),
		runner: runner,
		binary: binary,
	}
}

// Package runs the packager and returns the path of the written manifest.
func (p *Packager) Package(ctx context.Context, req Request) (string, error) {
	args, err := Args(req)
	if err != nil {
		return "", err
	}

	p.logger.Info().
		Str("key-system", string(req.KeySystem)).
		Str("manifest-type", string(req.ManifestType)).
		Int("tracks", len(req.Tracks)).
		Msg("packaging")

	if _, err := p.runner.Run(ctx, p.binary, args...); err != nil {
		return "", err
	}

	return req.ManifestPath(), nil
}
