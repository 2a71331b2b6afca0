package cmd

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommand(t *testing.T) {
	assert.NotNil(t, decodeCmd)
	assert.True(t, strings.HasPrefix(decodeCmd.Use, "decode"))
	assert.NotEmpty(t, decodeCmd.Short)
	assert.NotEmpty(t, decodeCmd.Long)

	for _, name := range []string{"format", "output", "overlay-dir", "workers", "recursive", "strict"} {
		assert.NotNil(t, decodeCmd.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestDecodeCommandWithoutFile(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"decode"})
	require.Error(t, err)
	assert.Contains(t, output, "requires at least 1 arg")
}

func TestDecodeCommandReadsImages(t *testing.T) {
	dir := t.TempDir()
	scenes := testutil.StandardScenes[:2]
	for _, s := range scenes {
		testutil.SaveImage(t, testutil.RenderScene(t, s), filepath.Join(dir, s.Name+".png"))
	}

	output, err := executeCommandAndCaptureOutput(t, rootCmd,
		[]string{"decode", dir, "--snap-degrees", "2", "--workers", "2", "--format", "text"})
	require.NoError(t, err)

	for _, s := range scenes {
		assert.Contains(t, output, filepath.Join(dir, s.Name+".png")+": "+s.Number)
	}
	assert.NotContains(t, output, "mismatch")
}

func TestDecodeCommandWritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	s := testutil.StandardScenes[0]
	img := filepath.Join(dir, "in.png")
	testutil.SaveImage(t, testutil.RenderScene(t, s), img)
	out := filepath.Join(dir, "results.csv")
	overlays := filepath.Join(dir, "overlays")

	_, err := executeCommandAndCaptureOutput(t, rootCmd, []string{
		"decode", img, "--snap-degrees", "2", "--format", "csv", "--output", out, "--overlay-dir", overlays,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "source,bar_number"))
	assert.Contains(t, string(data), s.Number)
	assert.True(t, testutil.FileExists(filepath.Join(overlays, "in_overlay.png")))
}

func TestDecodeCommandStrict(t *testing.T) {
	dir := t.TempDir()
	blank := filepath.Join(dir, "blank.png")
	testutil.SaveImage(t, testutil.CreateTestImage(300, 120, color.White), blank)

	_, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"decode", blank})
	require.NoError(t, err)

	_, err = executeCommandAndCaptureOutput(t, rootCmd, []string{"decode", blank, "--strict"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bar reading")
}

func TestStrictCheck(t *testing.T) {
	good := "4006381333931"
	other := "4006381333948"
	results := []*pipeline.Result{
		{BarNumber: &good, ChecksumValid: true},
		nil,
		{},
		{BarNumber: &good},
		{BarNumber: &good, GlyphNumber: &other, ChecksumValid: true, Mismatch: true},
	}
	paths := []string{"ok.png", "failed.png", "blank.png", "checksum.png", "mismatch.png"}

	err := strictCheck(results, paths)
	require.Error(t, err)
	msg := err.Error()
	assert.NotContains(t, msg, "ok.png")
	assert.Contains(t, msg, "failed.png: not decoded")
	assert.Contains(t, msg, "blank.png: no bar reading")
	assert.Contains(t, msg, "checksum.png: bad checksum")
	assert.Contains(t, msg, "mismatch.png: bars read 4006381333931 but digits read 4006381333948")

	require.NoError(t, strictCheck(results[:1], paths[:1]))
}

func TestBatchConfigFlags(t *testing.T) {
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	cfg := config.DefaultConfig()
	cfg.Output.OverlayDir = "from-config"
	cfg.Batch.Workers = 3

	bc, err := batchConfig(decodeCmd, &cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, bc.Workers)
	assert.Equal(t, "from-config", bc.OverlayDir)
	assert.True(t, bc.ContinueOnError)

	require.NoError(t, decodeCmd.Flags().Set("workers", "7"))
	require.NoError(t, decodeCmd.Flags().Set("overlay-dir", "from-flag"))
	require.NoError(t, decodeCmd.Flags().Set("mismatch-color", "#0000ff"))
	require.NoError(t, decodeCmd.Flags().Set("stop-on-error", "true"))
	require.NoError(t, decodeCmd.Flags().Set("exclude", "*.gif,*.bmp"))

	bc, err = batchConfig(decodeCmd, &cfg)
	require.NoError(t, err)
	assert.Equal(t, 7, bc.Workers)
	assert.Equal(t, 7, bc.Pipeline.Parallel.MaxWorkers)
	assert.Equal(t, "from-flag", bc.OverlayDir)
	assert.Equal(t, "#0000ff", bc.Overlay.MismatchColor)
	assert.Equal(t, cfg.Output.OverlayColor, bc.Overlay.Color)
	assert.False(t, bc.ContinueOnError)
	assert.Equal(t, []string{"*.gif", "*.bmp"}, bc.ExcludePatterns)
}

func TestPublishResultsWithoutBroker(t *testing.T) {
	cfg := config.DefaultConfig()
	bar := "4006381333931"
	require.NoError(t, publishResults(t.Context(), &cfg, []*pipeline.Result{{BarNumber: &bar}}))
}
