package manifest

import (
	"fmt"
	"strings"

	"github.com/Eyevinn/hls-m3u8/m3u8"
)

type MasterInfo struct {
	Variants          int
	Renditions        int
	DefaultRenditions int
}

// InspectMaster parses a master playlist and counts its renditions.
func InspectMaster(text string) (*MasterInfo, error) {
	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(text), false)
	if err != nil {
		return nil, err
	}

	if listType != m3u8.MASTER {
		return nil, fmt.Errorf("not a master playlist")
	}

	master, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return nil, fmt.Errorf("unexpected playlist type %T", playlist)
	}

	info := &MasterInfo{}
	seen := map[*m3u8.Alternative]bool{}
	for _, variant := range master.Variants {
		if variant == nil || variant.Iframe {
			continue
		}

		info.Variants++
		for _, alt := range variant.Alternatives {
			if alt == nil || seen[alt] {
				continue
			}
			seen[alt] = true

			info.Renditions++
			if alt.Default {
				info.DefaultRenditions++
			}
		}
	}

	return info, nil
}
