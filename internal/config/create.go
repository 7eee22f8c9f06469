package config

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/m1k1o/drmpack/internal/types"
	"github.com/m1k1o/drmpack/internal/utils"
)

const (
	defPsshBoxPath  = "~/repos/shaka-packager/src/out/Release/pssh-box.py"
	defPackagerPath = "~/repos/shaka-packager/src/out/Release/packager"
)

type Pssh struct {
	Parallel bool `mapstructure:"parallel"`
	Strict   bool `mapstructure:"strict"`
	Validate bool `mapstructure:"validate"`
}

type Create struct {
	Source          string             `mapstructure:"source"`
	Destination     string             `mapstructure:"destination"`
	ManifestType    types.ManifestType `mapstructure:"manifest-type"`
	SegmentDuration float64            `mapstructure:"segment-duration"`
	SegmentTemplate bool               `mapstructure:"segment-template"`
	PsshBoxPath     string             `mapstructure:"pssh-box-path"`
	PackagerPath    string             `mapstructure:"shaka-packager-path"`
	KeySystem       types.KeySystem    `mapstructure:"key-system"`

	KeyIDAudio string `mapstructure:"key-id-audio"`
	KeyIDVideo string `mapstructure:"key-id-video"`
	KeyAudio   string `mapstructure:"key-audio"`
	KeyVideo   string `mapstructure:"key-video"`
	SameKey    bool   `mapstructure:"same-key"`
	AudioOnly  bool   `mapstructure:"audio-only"`
	VideoOnly  bool   `mapstructure:"video-only"`
	ContentID  string `mapstructure:"content-id"`

	Templates string `mapstructure:"templates"`
	Pssh      Pssh   `mapstructure:"pssh"`
}

func (Create) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().String("source", "", "source file")
	if err := viper.BindPFlag("source", cmd.PersistentFlags().Lookup("source")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("destination", "out", "destination directory to put assets")
	if err := viper.BindPFlag("destination", cmd.PersistentFlags().Lookup("destination")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("manifest-type", string(types.Hls), `"hls" or "dash"`)
	if err := viper.BindPFlag("manifest-type", cmd.PersistentFlags().Lookup("manifest-type")); err != nil {
		return err
	}

	cmd.PersistentFlags().Float64("segment-duration", 6, "segment duration in seconds to use, 0 for packager default")
	if err := viper.BindPFlag("segment-duration", cmd.PersistentFlags().Lookup("segment-duration")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("segment-template", false, "write init and numbered segments per track (dash only)")
	if err := viper.BindPFlag("segment-template", cmd.PersistentFlags().Lookup("segment-template")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("pssh-box-path", defPsshBoxPath, "path to pssh-box.py")
	if err := viper.BindPFlag("pssh-box-path", cmd.PersistentFlags().Lookup("pssh-box-path")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("shaka-packager-path", defPackagerPath, "path to shaka's packager")
	if err := viper.BindPFlag("shaka-packager-path", cmd.PersistentFlags().Lookup("shaka-packager-path")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("key-system", string(types.Clearkey), `"clearkey" and "widevine" are supported`)
	if err := viper.BindPFlag("key-system", cmd.PersistentFlags().Lookup("key-system")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("key-id-audio", "", "custom audio 32 char hex string key ID (defaults to random)")
	if err := viper.BindPFlag("key-id-audio", cmd.PersistentFlags().Lookup("key-id-audio")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("key-id-video", "", "custom video 32 char hex string key ID (defaults to random)")
	if err := viper.BindPFlag("key-id-video", cmd.PersistentFlags().Lookup("key-id-video")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("key-audio", "", "custom audio 128 bit key in hex (defaults to random)")
	if err := viper.BindPFlag("key-audio", cmd.PersistentFlags().Lookup("key-audio")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("key-video", "", "custom video 128 bit key in hex (defaults to random)")
	if err := viper.BindPFlag("key-video", cmd.PersistentFlags().Lookup("key-video")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("same-key", true, "use same key for audio and video, video key is primary")
	if err := viper.BindPFlag("same-key", cmd.PersistentFlags().Lookup("same-key")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("audio-only", false, "output audio only")
	if err := viper.BindPFlag("audio-only", cmd.PersistentFlags().Lookup("audio-only")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("video-only", false, "output video only")
	if err := viper.BindPFlag("video-only", cmd.PersistentFlags().Lookup("video-only")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("content-id", "", "widevine 32 char hex content ID (defaults to random)")
	if err := viper.BindPFlag("content-id", cmd.PersistentFlags().Lookup("content-id")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("templates", "", "directory with custom README and sample code templates")
	if err := viper.BindPFlag("templates", cmd.PersistentFlags().Lookup("templates")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("pssh.parallel", true, "run pssh lookups concurrently")
	if err := viper.BindPFlag("pssh.parallel", cmd.PersistentFlags().Lookup("pssh.parallel")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("pssh.strict", false, "fail when a per-stream pssh lookup fails")
	if err := viper.BindPFlag("pssh.strict", cmd.PersistentFlags().Lookup("pssh.strict")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("pssh.validate", false, "fail when the combined pssh is not a valid pssh box")
	if err := viper.BindPFlag("pssh.validate", cmd.PersistentFlags().Lookup("pssh.validate")); err != nil {
		return err
	}

	return nil
}

func (c *Create) Set() {
	if err := viper.Unmarshal(c, decodeHook()); err != nil {
		log.Panic().Err(err).Msg("unable to unmarshal config structure")
	}
}

// Request resolves missing key material and returns a validated request.
func (c *Create) Request() (types.PackagingRequest, error) {
	if c.AudioOnly && c.VideoOnly {
		return types.PackagingRequest{}, &types.ConfigurationError{Field: "audio-only", Reason: "cannot be combined with video-only"}
	}

	keyIDAudio := hexOrRandom(c.KeyIDAudio)
	keyIDVideo := hexOrRandom(c.KeyIDVideo)
	keyVideo := hexOrRandom(c.KeyVideo)

	keyAudio := keyVideo
	if !c.SameKey {
		keyAudio = hexOrRandom(c.KeyAudio)
	} else if c.KeyAudio != "" {
		log.Warn().Msg("key-audio is ignored while same-key is enabled")
	}

	req := types.PackagingRequest{
		SourcePath:      c.Source,
		OutputDir:       c.Destination,
		ManifestType:    c.ManifestType,
		KeySystem:       c.KeySystem,
		SegmentDuration: c.SegmentDuration,
		SegmentTemplate: c.SegmentTemplate,
		PsshBoxPath:     c.PsshBoxPath,
		PackagerPath:    c.PackagerPath,
		ContentID:       strings.ToLower(c.ContentID),
	}

	if !c.VideoOnly {
		req.Audio = &types.KeySpec{KeyID: keyIDAudio, Key: keyAudio}
	}
	if !c.AudioOnly {
		req.Video = &types.KeySpec{KeyID: keyIDVideo, Key: keyVideo}
	}

	return req, req.Validate()
}

func hexOrRandom(s string) string {
	if s == "" {
		return utils.HexString(types.KeyHexLength)
	}
	return strings.ToLower(s)
}
