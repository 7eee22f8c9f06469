package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// KeySystem selects how content keys reach the player.
type KeySystem string

const (
	Clearkey KeySystem = "clearkey"
	Widevine KeySystem = "widevine"
)

// ParseKeySystem accepts "clearkey" or "widevine" in any case.
func ParseKeySystem(s string) (KeySystem, error) {
	switch ks := KeySystem(strings.ToLower(strings.TrimSpace(s))); ks {
	case Clearkey, Widevine:
		return ks, nil
	}
	return "", &ConfigurationError{Field: "key-system", Value: s, Reason: `"clearkey" and "widevine" are supported`}
}

// ManifestType selects the adaptive streaming format.
type ManifestType string

const (
	Dash ManifestType = "dash"
	Hls  ManifestType = "hls"
)

// ParseManifestType accepts "hls" or "dash" in any case.
func ParseManifestType(s string) (ManifestType, error) {
	switch mt := ManifestType(strings.ToLower(strings.TrimSpace(s))); mt {
	case Dash, Hls:
		return mt, nil
	}
	return "", &ConfigurationError{Field: "manifest-type", Value: s, Reason: `"hls" and "dash" are supported`}
}

// ManifestName is the file name the packager writes the top-level manifest to.
func (m ManifestType) ManifestName() string {
	if m == Dash {
		return "manifest.mpd"
	}
	return "master.m3u8"
}

type StreamType string

const (
	Audio StreamType = "audio"
	Video StreamType = "video"
)

// DRMLabel associates packager keys with the stream.
func (s StreamType) DRMLabel() string {
	if s == Audio {
		return "AUDIO"
	}
	return "SD"
}

// length of key IDs and keys in hex characters (128 bit)
const KeyHexLength = 32

// KeySpec is a key ID and content key pair, both hex encoded.
type KeySpec struct {
	KeyID string
	Key   string
}

func (k KeySpec) Validate() error {
	if err := ValidateHex("key-id", k.KeyID, KeyHexLength); err != nil {
		return err
	}
	return ValidateHex("key", k.Key, KeyHexLength)
}

// ValidateHex checks that value is exactly length hex characters.
func ValidateHex(field, value string, length int) error {
	if len(value) != length {
		return &ConfigurationError{Field: field, Value: value, Reason: fmt.Sprintf("must be %d hex characters", length)}
	}
	if _, err := hex.DecodeString(value); err != nil {
		return &ConfigurationError{Field: field, Value: value, Reason: "must be a hex string"}
	}
	return nil
}

// Track is a stream to encrypt together with its key.
type Track struct {
	Stream StreamType
	Key    KeySpec
}

// PackagingRequest describes a single packaging run.
type PackagingRequest struct {
	SourcePath      string
	OutputDir       string
	ManifestType    ManifestType
	KeySystem       KeySystem
	SegmentDuration float64 // in seconds, 0 leaves packager default
	SegmentTemplate bool    // DASH only, writes init + numbered segments per track

	Audio *KeySpec // nil when audio is excluded
	Video *KeySpec // nil when video is excluded

	PsshBoxPath  string
	PackagerPath string

	ContentID string // widevine only, generated when empty
}

// Tracks returns included tracks, audio first.
func (r *PackagingRequest) Tracks() []Track {
	tracks := []Track{}
	if r.Audio != nil {
		tracks = append(tracks, Track{Stream: Audio, Key: *r.Audio})
	}
	if r.Video != nil {
		tracks = append(tracks, Track{Stream: Video, Key: *r.Video})
	}
	return tracks
}

// Validate rejects requests that would fail before any process runs.
func (r *PackagingRequest) Validate() error {
	if _, err := ParseKeySystem(string(r.KeySystem)); err != nil {
		return err
	}
	if _, err := ParseManifestType(string(r.ManifestType)); err != nil {
		return err
	}
	if r.SourcePath == "" {
		return &ConfigurationError{Field: "source", Reason: "source file is required"}
	}
	if r.OutputDir == "" {
		return &ConfigurationError{Field: "destination", Reason: "destination directory is required"}
	}
	if r.SegmentDuration < 0 {
		return &ConfigurationError{Field: "segment-duration", Value: fmt.Sprint(r.SegmentDuration), Reason: "must not be negative"}
	}
	if r.SegmentTemplate && r.ManifestType != Dash {
		return &ConfigurationError{Field: "segment-template", Reason: "segment templates are only supported for dash"}
	}

	tracks := r.Tracks()
	if len(tracks) == 0 {
		return &ConfigurationError{Field: "tracks", Reason: "at least one of audio or video must be packaged"}
	}
	for _, track := range tracks {
		if err := track.Key.Validate(); err != nil {
			return err
		}
	}

	if r.KeySystem == Widevine && r.ContentID != "" {
		if err := ValidateHex("content-id", r.ContentID, KeyHexLength); err != nil {
			return err
		}
	}

	return nil
}

// PsshRecord is the per-stream key material written into the bundle.
type PsshRecord struct {
	Type  StreamType
	Key   string
	KeyID string
	Pssh  string
}
