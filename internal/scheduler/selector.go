package scheduler

import (
	"math/rand"

	"github.com/yourusername/streamcast/internal/catalog"
	"github.com/yourusername/streamcast/internal/client"
	"github.com/yourusername/streamcast/internal/mediatype"
)

// SelectVideoFunc picks the video quality variant to send next for cl.
// Every configured variant is guaranteed ready whenever the scheduler
// calls this (spec.md's VReady requires all of them), so implementations
// never need to check availability themselves.
type SelectVideoFunc func(ch *catalog.Channel, cl *client.Client) mediatype.VideoFormat

// SelectAudioFunc picks the audio quality variant to send next for cl,
// among the variants ready at ts. ready is never empty when this is
// called.
type SelectAudioFunc func(ch *catalog.Channel, cl *client.Client, ready []mediatype.AudioFormat) mediatype.AudioFormat

// defaultSelectVideo mirrors the original server's quality selector: no
// adaptive logic, just a uniform random pick among the configured
// variants (spec.md §4.7 leaves adaptation to the caller).
func defaultSelectVideo(rng *rand.Rand) SelectVideoFunc {
	return func(ch *catalog.Channel, cl *client.Client) mediatype.VideoFormat {
		formats := ch.VFormats()
		return formats[rng.Intn(len(formats))]
	}
}

// defaultSelectAudio is the audio analogue: a uniform random pick among
// whichever variants currently have a segment ready.
func defaultSelectAudio(rng *rand.Rand) SelectAudioFunc {
	return func(ch *catalog.Channel, cl *client.Client, ready []mediatype.AudioFormat) mediatype.AudioFormat {
		return ready[rng.Intn(len(ready))]
	}
}
