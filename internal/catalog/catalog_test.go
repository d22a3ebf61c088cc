package catalog

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/streamcast/internal/mediatype"
)

func writeSegment(t *testing.T, dir string, ts uint64, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	name := strconv.FormatUint(ts, 10) + segmentExt
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestConfig(t *testing.T, root string) Config {
	t.Helper()
	return Config{
		VideoDir:  filepath.Join(root, "video"),
		AudioDir:  filepath.Join(root, "audio"),
		VFormats:  []string{"1080p", "720p"},
		AFormats:  []string{"high", "low"},
		VDuration: 180000,
		ADuration: 90000,
		Timescale: 90000,
		VCodec:    "avc1.640028",
		ACodec:    "mp4a.40.2",
	}
}

func TestCatalog_VReadyRequiresAllVariants(t *testing.T) {
	root := t.TempDir()
	cfg := newTestConfig(t, root)

	writeSegment(t, filepath.Join(cfg.VideoDir, "1080p"), 180000, "v1080")
	// 720p missing at this ts: VReady must be false.

	log := zap.NewNop()
	cat, err := Load([]string{"ch1"}, map[string]Config{"ch1": cfg}, log)
	require.NoError(t, err)
	defer cat.Close()

	ch, ok := cat.Lookup("ch1")
	require.True(t, ok)
	assert.False(t, ch.VReady(180000))

	writeSegment(t, filepath.Join(cfg.VideoDir, "720p"), 180000, "v720")
	require.Eventually(t, func() bool { return ch.VReady(180000) }, 2*time.Second, 10*time.Millisecond)
}

func TestCatalog_AReadyRequiresAtLeastOneVariant(t *testing.T) {
	root := t.TempDir()
	cfg := newTestConfig(t, root)
	writeSegment(t, filepath.Join(cfg.AudioDir, "high"), 90000, "a-high")

	cat, err := Load([]string{"ch1"}, map[string]Config{"ch1": cfg}, zap.NewNop())
	require.NoError(t, err)
	defer cat.Close()

	ch, _ := cat.Lookup("ch1")
	require.Eventually(t, func() bool { return ch.AReady(90000) }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, ch.AReady(180000))
}

func TestCatalog_LiveEdgeAdvancesOnlyWhenFullyReady(t *testing.T) {
	root := t.TempDir()
	cfg := newTestConfig(t, root)

	cat, err := Load([]string{"ch1"}, map[string]Config{"ch1": cfg}, zap.NewNop())
	require.NoError(t, err)
	defer cat.Close()
	ch, _ := cat.Lookup("ch1")
	assert.Equal(t, uint64(0), ch.InitVTS())

	writeSegment(t, filepath.Join(cfg.VideoDir, "1080p"), 180000, "v1080")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, uint64(0), ch.InitVTS(), "live edge must not advance until every video variant is ready")

	writeSegment(t, filepath.Join(cfg.VideoDir, "720p"), 180000, "v720")
	require.Eventually(t, func() bool { return ch.InitVTS() == 180000 }, 2*time.Second, 10*time.Millisecond)
}

func TestCatalog_LookupDefaultsToFirstConfiguredChannel(t *testing.T) {
	root := t.TempDir()
	cfgA := newTestConfig(t, filepath.Join(root, "a"))
	cfgB := newTestConfig(t, filepath.Join(root, "b"))

	cat, err := Load([]string{"a", "b"}, map[string]Config{"a": cfgA, "b": cfgB}, zap.NewNop())
	require.NoError(t, err)
	defer cat.Close()

	ch, ok := cat.Lookup("")
	require.True(t, ok)
	assert.Equal(t, "a", ch.Name())
}

func TestCatalog_UnknownFormatIsAnError(t *testing.T) {
	root := t.TempDir()
	cfg := newTestConfig(t, root)
	cat, err := Load([]string{"ch1"}, map[string]Config{"ch1": cfg}, zap.NewNop())
	require.NoError(t, err)
	defer cat.Close()

	ch, _ := cat.Lookup("ch1")
	_, err = ch.VData(mediatype.NewVideoFormat("4k"), 180000)
	assert.Error(t, err)
}

func TestChannel_FindATS(t *testing.T) {
	root := t.TempDir()
	cfg := newTestConfig(t, root)
	cat, err := Load([]string{"ch1"}, map[string]Config{"ch1": cfg}, zap.NewNop())
	require.NoError(t, err)
	defer cat.Close()

	ch, _ := cat.Lookup("ch1")
	assert.Equal(t, uint64(90000), ch.FindATS(100000))
	assert.Equal(t, uint64(0), ch.FindATS(50000))
}
