// Package manifest specifies the MPD manifest writer collaborator that
// spec.md §1 names as external to the scheduler. Manifest generation
// itself is a Non-goal (spec.md §1), so this package intentionally stops
// at the interface the catalog would call plus a minimal debug
// implementation — not a full DASH MPD profile writer.
package manifest

import (
	"fmt"
	"io"

	"github.com/yourusername/streamcast/internal/catalog"
)

// Writer is the narrow contract a real MPD generator would satisfy.
// The scheduler never depends on this interface; only the admin HTTP
// surface (internal/api) uses it, for a human-readable debug snapshot.
type Writer interface {
	WriteManifest(w io.Writer, ch *catalog.Channel) error
}

// DebugWriter renders a plain-text (not a conformant DASH MPD) summary
// of a channel's current live edge and quality ladders. It exists so the
// admin surface has something to show; production manifest generation
// is explicitly out of scope per spec.md's Non-goals.
type DebugWriter struct{}

func (DebugWriter) WriteManifest(w io.Writer, ch *catalog.Channel) error {
	_, err := fmt.Fprintf(w, "channel=%s timescale=%d init_vts=%d vformats=%v aformats=%v\n",
		ch.Name(), ch.Timescale(), ch.InitVTS(), ch.VFormats(), ch.AFormats())
	return err
}
