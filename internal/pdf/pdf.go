// Package pdf extracts embedded raster images from PDF files so that the
// barcodes printed on them can be decoded.
package pdf

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/MeKo-Tech/barscan/internal/utils"
)

// ExtractImages extracts all images from a PDF file using pdfcpu's extract
// functionality, grouped by 1-based page number in document order.
func ExtractImages(filename string, pageRange string) (map[int][]image.Image, error) {
	pageNumbers, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "barscan-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	for _, n := range pageNumbers {
		pageStrings = append(pageStrings, strconv.Itoa(n))
	}

	if err := api.ExtractImagesFile(filename, tempDir, pageStrings, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	result, err := collectExtractedImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return result, nil
}

// PageCount returns the number of pages in filename.
func PageCount(filename string) (int, error) {
	n, err := api.PageCountFile(filename)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF page count: %w", err)
	}
	return n, nil
}

type extracted struct {
	page, index int
	path        string
}

// collectExtractedImages loads the images pdfcpu wrote to dir. It expects
// filenames like <name>_<page>_<index>.<ext> or page_<page>_image_<index>.<ext>;
// anything else, or anything that fails to decode, is skipped.
func collectExtractedImages(dir string) (map[int][]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []extracted
	for _, e := range entries {
		if e.IsDir() || !utils.IsSupportedImage(e.Name()) {
			continue
		}
		page, index, err := parseExtractedName(e.Name())
		if err != nil {
			continue
		}
		files = append(files, extracted{page: page, index: index, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].page != files[j].page {
			return files[i].page < files[j].page
		}
		return files[i].index < files[j].index
	})

	result := make(map[int][]image.Image)
	for _, f := range files {
		img, _, err := utils.LoadImage(f.path)
		if err != nil {
			continue
		}
		result[f.page] = append(result[f.page], img)
	}
	return result, nil
}

// parseExtractedName returns the page and image index encoded in an
// extracted image filename.
func parseExtractedName(filename string) (page, index int, err error) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	if rest, ok := strings.CutPrefix(base, "page_"); ok {
		parts := strings.Split(rest, "_")
		if page, err = strconv.Atoi(parts[0]); err != nil {
			return 0, 0, errors.New("invalid page number")
		}
		if len(parts) == 3 && parts[1] == "image" {
			index, _ = strconv.Atoi(parts[2])
		}
		return page, index, nil
	}

	// pdfcpu names images <pdf base>_<page>_<object id>.
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return 0, 0, errors.New("not a page image")
	}
	if page, err = strconv.Atoi(parts[len(parts)-2]); err != nil {
		return 0, 0, errors.New("invalid page number")
	}
	if index, err = strconv.Atoi(parts[len(parts)-1]); err != nil {
		return 0, 0, errors.New("invalid image index")
	}
	return page, index, nil
}

// parsePageRange parses a page range string like "1-5" or "1,3,5".
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil // all pages
	}

	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start < 1 || start > end {
			return nil, fmt.Errorf("invalid page range %d-%d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil || page < 1 {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
