// Package mp4probe is the thin MPEG-4 box parser collaborator spec.md
// §1 names: it recovers codec and timescale metadata from an init
// segment. The catalog only logs what it finds; codec strings still
// come from channel configuration. It is never imported by the
// scheduler — probing is a convenience at load time only.
package mp4probe

import (
	"fmt"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
)

// InitInfo is what the catalog needs out of an init segment's boxes.
type InitInfo struct {
	Timescale uint32
	Codec     string
}

// ProbeInit opens and decodes path as a fragmented-MP4 init segment,
// walking its box tree (ftyp/moov/trak/mdia) to recover the timescale
// and sample-entry codec fourcc of its first track.
func ProbeInit(path string) (InitInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return InitInfo{}, fmt.Errorf("mp4probe: open: %w", err)
	}
	defer f.Close()

	parsed, err := mp4.DecodeFile(f)
	if err != nil {
		return InitInfo{}, fmt.Errorf("mp4probe: decode: %w", err)
	}
	if parsed.Init == nil || parsed.Init.Moov == nil || len(parsed.Init.Moov.Traks) == 0 {
		return InitInfo{}, fmt.Errorf("mp4probe: %s has no init segment track", path)
	}

	trak := parsed.Init.Moov.Traks[0]
	info := InitInfo{}
	if trak.Mdia != nil && trak.Mdia.Mdhd != nil {
		info.Timescale = trak.Mdia.Mdhd.Timescale
	}
	if trak.Mdia != nil && trak.Mdia.Minf != nil && trak.Mdia.Minf.Stbl != nil &&
		trak.Mdia.Minf.Stbl.Stsd != nil && len(trak.Mdia.Minf.Stbl.Stsd.Children) > 0 {
		info.Codec = trak.Mdia.Minf.Stbl.Stsd.Children[0].Type()
	}
	if info.Codec == "" {
		return info, fmt.Errorf("mp4probe: %s: no sample entry found", path)
	}
	return info, nil
}
