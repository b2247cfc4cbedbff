package infra

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"token_scanner/internal/seed"

	"github.com/disintegration/imaging"
)

const (
	iconGrid     = 5
	iconCellSize = 8
	// IconSize is the edge of the served icons in pixels.
	IconSize = 24
)

// IconRenderer renders and caches a deterministic identicon per token address.
type IconRenderer struct {
	basePath string
}

// NewIconRenderer creates a renderer caching PNGs under basePath
func NewIconRenderer(basePath string) (*IconRenderer, error) {
	if basePath == "" {
		basePath = filepath.Join("data", "icons")
	}

	// Ensure directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create icon directory: %w", err)
	}

	return &IconRenderer{basePath: basePath}, nil
}

// RenderIcon writes the icon of address to the cache if missing and returns its path.
// Images are resized to 24x24 pixels for consistent UI display
func (r *IconRenderer) RenderIcon(address string) (string, error) {
	// Security: Sanitize address to prevent path traversal
	safe := sanitizeAddress(address)
	if safe == "" {
		return "", fmt.Errorf("invalid address: %q", address)
	}

	filePath := r.GetIconPath(safe)

	// Check if exists
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Already exists (Cache Hit)
	}

	if err := imaging.Save(Identicon(safe), filePath); err != nil {
		return "", fmt.Errorf("failed to save icon: %w", err)
	}
	return filePath, nil
}

// IconPNG returns the encoded icon of address, rendering it first if needed.
func (r *IconRenderer) IconPNG(address string) ([]byte, error) {
	path, err := r.RenderIcon(address)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// GetIconPath returns the local path for an address's icon
func (r *IconRenderer) GetIconPath(address string) string {
	return filepath.Join(r.basePath, strings.ToLower(sanitizeAddress(address))+".png")
}

// Identicon draws a horizontally symmetric 5x5 pattern whose colors and cells
// derive from the lower-cased address.
func Identicon(address string) image.Image {
	r := seed.New(seed.Hash(strings.ToLower(address)))
	fg := color.NRGBA{R: uint8(64 + r.Intn(160)), G: uint8(64 + r.Intn(160)), B: uint8(64 + r.Intn(160)), A: 255}
	bg := color.NRGBA{R: 240, G: 240, B: 240, A: 255}

	edge := iconGrid * iconCellSize
	img := imaging.New(edge, edge, bg)
	cell := imaging.New(iconCellSize, iconCellSize, fg)
	for y := 0; y < iconGrid; y++ {
		for x := 0; x <= iconGrid/2; x++ {
			if !r.Chance(0.5) {
				continue
			}
			img = imaging.Paste(img, cell, image.Pt(x*iconCellSize, y*iconCellSize))
			mirror := iconGrid - 1 - x
			img = imaging.Paste(img, cell, image.Pt(mirror*iconCellSize, y*iconCellSize))
		}
	}

	// Resize to 24x24 with high-quality Lanczos filter
	return imaging.Resize(img, IconSize, IconSize, imaging.Lanczos)
}

// EncodeIcon encodes img as PNG.
func EncodeIcon(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sanitizeAddress(address string) string {
	res := make([]rune, 0, len(address))
	for _, r := range address {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			res = append(res, r)
		}
	}
	return string(res)
}
