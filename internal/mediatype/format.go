// Package mediatype holds the opaque quality-variant identifiers shared
// by the catalog and the scheduler.
package mediatype

// VideoFormat identifies one video quality variant of a channel (e.g. a
// resolution/bitrate rung). Two formats are equal iff their names match.
type VideoFormat struct {
	name string
}

// NewVideoFormat wraps a variant name read from channel configuration.
func NewVideoFormat(name string) VideoFormat { return VideoFormat{name: name} }

func (f VideoFormat) String() string { return f.name }

func (f VideoFormat) Equal(other VideoFormat) bool { return f.name == other.name }

// IsZero reports whether f is the unset zero value. Client.CurrVQ holds
// it until the first segment's quality is chosen; the scheduler sets
// CurrVQ when a segment starts, not when it completes.
func (f VideoFormat) IsZero() bool { return f.name == "" }

// AudioFormat identifies one audio quality variant of a channel.
type AudioFormat struct {
	name string
}

func NewAudioFormat(name string) AudioFormat { return AudioFormat{name: name} }

func (f AudioFormat) String() string { return f.name }

func (f AudioFormat) Equal(other AudioFormat) bool { return f.name == other.name }

func (f AudioFormat) IsZero() bool { return f.name == "" }
