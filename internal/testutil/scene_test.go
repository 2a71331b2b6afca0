package testutil

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScene_RotationGrowsCanvas(t *testing.T) {
	upright := RenderScene(t, Scene{Name: "upright", Number: "4006381333931"})
	skewed := RenderScene(t, Scene{Name: "skewed", Number: "4006381333931", Degrees: 10})

	assert.Greater(t, skewed.Bounds().Dx(), upright.Bounds().Dx())
	assert.Greater(t, skewed.Bounds().Dy(), upright.Bounds().Dy())
}

func TestSkewedScenes_PrintDigits(t *testing.T) {
	for _, s := range SkewedScenes {
		assert.True(t, s.RenderOptions().Digits, s.Name)
		assert.NotZero(t, s.Degrees, s.Name)
	}
}

func TestScene_InvalidNumber(t *testing.T) {
	_, err := Scene{Number: "abc"}.Render()
	assert.Error(t, err)
}

func TestSaveLoadAndCompare(t *testing.T) {
	img := RenderScene(t, StandardScenes[0])
	path := filepath.Join(t.TempDir(), "nested", "scene.png")

	SaveImage(t, img, path)
	require.True(t, FileExists(path))

	back := LoadImage(t, path)
	assert.True(t, CompareImages(img, back, 0))

	white := CreateTestImage(back.Bounds().Dx(), back.Bounds().Dy(), color.White)
	assert.False(t, CompareImages(back, white, 0.01))
	assert.False(t, CompareImages(back, CreateTestImage(1, 1, color.White), 1))
}

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
}
