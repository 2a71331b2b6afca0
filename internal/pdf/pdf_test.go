package pdf

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/barscan/internal/utils"
)

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		name        string
		pageRange   string
		want        []int
		expectError bool
	}{
		{name: "empty range returns nil", pageRange: "", want: nil},
		{name: "blank range returns nil", pageRange: "   ", want: nil},
		{name: "single page", pageRange: "1", want: []int{1}},
		{name: "multiple single pages", pageRange: "1,3,5", want: []int{1, 3, 5}},
		{name: "simple range", pageRange: "1-5", want: []int{1, 2, 3, 4, 5}},
		{name: "mixed pages and ranges", pageRange: "1,3-5,7", want: []int{1, 3, 4, 5, 7}},
		{name: "range with spaces", pageRange: " 1 - 3 , 5 ", want: []int{1, 2, 3, 5}},
		{name: "invalid page number", pageRange: "abc", expectError: true},
		{name: "invalid range format", pageRange: "1-2-3", expectError: true},
		{name: "reversed range", pageRange: "5-1", expectError: true},
		{name: "page zero", pageRange: "0", expectError: true},
		{name: "range from zero", pageRange: "0-2", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePageRange(tt.pageRange)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExtractedName(t *testing.T) {
	tests := []struct {
		filename  string
		page      int
		index     int
		expectErr bool
	}{
		{filename: "page_1_image_2.png", page: 1, index: 2},
		{filename: "page_12.jpg", page: 12},
		{filename: "labels_3_17.png", page: 3, index: 17},
		{filename: "my_labels_4_9.jpg", page: 4, index: 9},
		{filename: "page_x_image_1.png", expectErr: true},
		{filename: "image_1.png", expectErr: true},
		{filename: "not_a_match.png", expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			page, index, err := parseExtractedName(tt.filename)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.page, page)
			assert.Equal(t, tt.index, index)
		})
	}
}

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCollectExtractedImages(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, w int) {
		require.NoError(t, utils.SaveImage(solidImage(w, 6, color.Black), filepath.Join(dir, name)))
	}

	write("doc_1_10.png", 10)
	write("doc_1_2.jpg", 2)
	write("doc_2_5.png", 5)
	write("not_a_match.png", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc_3_1.png"), []byte("corrupt"), 0o600))

	result, err := collectExtractedImages(dir)
	require.NoError(t, err)

	require.Len(t, result, 2)
	require.Len(t, result[1], 2)
	require.Len(t, result[2], 1)
	// Ordered by object index, not by name.
	assert.Equal(t, 2, result[1][0].Bounds().Dx())
	assert.Equal(t, 10, result[1][1].Bounds().Dx())

	_, err = collectExtractedImages(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestExtractImages_ErrorCases(t *testing.T) {
	_, err := ExtractImages("/non/existent/file.pdf", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to extract images from PDF")

	_, err = ExtractImages("dummy.pdf", "invalid-range")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page range")

	_, err = PageCount("/non/existent/file.pdf")
	assert.Error(t, err)
}

func TestIsPasswordError(t *testing.T) {
	assert.False(t, IsPasswordError(nil))
	assert.True(t, IsPasswordError(errors.New("this file is Encrypted")))
	assert.True(t, IsPasswordError(errors.New("please provide the correct password")))
	assert.False(t, IsPasswordError(errors.New("unexpected EOF")))
}

func TestIsEncrypted_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	encrypted, err := IsEncrypted(path)
	assert.False(t, encrypted)
	assert.Error(t, err)

	_, cleanup, err := Decrypt(path, nil)
	assert.Error(t, err)
	assert.NotPanics(t, cleanup)
}
