package pssh

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Eyevinn/mp4ff/mp4"
)

var systemIDs = map[string]string{
	"1077efecc0b24d02ace33c1e52e2fb4b": "common",
	"edef8ba979d64acea3c827dcd51d21ed": "widevine",
	"9a04f07998404286ab92e65be0885f95": "playready",
}

type BoxInfo struct {
	Version  byte
	SystemID string
	KeyIDs   []string
	DataSize int
}

func (b BoxInfo) SystemName() string {
	if name, ok := systemIDs[b.SystemID]; ok {
		return name
	}
	return b.SystemID
}

// Inspect decodes one or more concatenated PSSH boxes given as hex.
func Inspect(psshHex string) ([]BoxInfo, error) {
	data, err := hex.DecodeString(psshHex)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("no data")
	}

	boxes := []BoxInfo{}
	reader := bytes.NewReader(data)

	var pos uint64
	for reader.Len() > 0 {
		box, err := mp4.DecodeBox(pos, reader)
		if err != nil {
			return nil, fmt.Errorf("decode box: %w", err)
		}

		psshBox, ok := box.(*mp4.PsshBox)
		if !ok {
			return nil, fmt.Errorf("box is a %s instead of a PSSH", box.Type())
		}

		info := BoxInfo{
			Version:  psshBox.Version,
			SystemID: hex.EncodeToString(psshBox.SystemID),
			DataSize: len(psshBox.Data),
		}
		for _, kid := range psshBox.KIDs {
			info.KeyIDs = append(info.KeyIDs, hex.EncodeToString(kid))
		}

		boxes = append(boxes, info)
		pos += box.Size()
	}

	return boxes, nil
}

func systemNames(boxes []BoxInfo) []string {
	names := make([]string, len(boxes))
	for i, box := range boxes {
		names[i] = box.SystemName()
	}
	return names
}
