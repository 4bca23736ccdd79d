package adminstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/rs/zerolog"
)

const galleryPrefix = "gallery"

var allowedExtensions = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true}

// Gallery is the ordered list of image file names shown on the site.
type Gallery struct {
	Images []string `json:"images"`
}

// GalleryStore manages uploaded images in dir and their order in a JSON file.
type GalleryStore struct {
	mu       sync.Mutex
	file     string
	dir      string
	maxBytes int64
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewGalleryStore(file, dir string, logger *zerolog.Logger) *GalleryStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &GalleryStore{
		file:     file,
		dir:      dir,
		maxBytes: models.MaxGalleryUploadBytes,
		now:      time.Now,
		logger:   logger,
	}
}

// List returns the gallery. Without a saved order, gallery images found in
// the upload directory are listed by name.
func (g *GalleryStore) List(_ context.Context) (*Gallery, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.load()
}

// Upload validates and stores an image as gallery_<timestamp>.<ext> and
// appends it to the gallery.
func (g *GalleryStore) Upload(_ context.Context, originalName string, r io.Reader) (string, error) {
	ext, err := imageExtension(originalName)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Read the current order before the new file lands in the scanned dir.
	gallery, err := g.load()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("create gallery dir: %w", err)
	}
	name, f, err := g.createUnique(ext)
	if err != nil {
		return "", err
	}
	path := filepath.Join(g.dir, name)

	n, err := io.Copy(f, io.LimitReader(r, g.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		os.Remove(path)
		return "", fmt.Errorf("save image: %w", err)
	case closeErr != nil:
		os.Remove(path)
		return "", fmt.Errorf("save image: %w", closeErr)
	case n > g.maxBytes:
		os.Remove(path)
		return "", ErrTooLarge
	case n == 0:
		os.Remove(path)
		return "", ErrEmptyFile
	}

	gallery.Images = append(gallery.Images, name)
	if err := writeJSON(g.file, gallery); err != nil {
		os.Remove(path)
		return "", err
	}
	g.logger.Info().Str("filename", name).Int64("bytes", n).Msg("gallery image uploaded")
	return name, nil
}

// Delete removes the image file and its gallery entry. Unknown names are not an error.
func (g *GalleryStore) Delete(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := os.Remove(filepath.Join(g.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	gallery, err := g.load()
	if err != nil {
		return err
	}
	kept := gallery.Images[:0]
	removed := false
	for _, img := range gallery.Images {
		if img == name {
			removed = true
			continue
		}
		kept = append(kept, img)
	}
	if !removed {
		return nil
	}
	gallery.Images = kept
	return writeJSON(g.file, gallery)
}

// Reorder saves images as the new gallery order.
func (g *GalleryStore) Reorder(_ context.Context, images []string) error {
	for _, name := range images {
		if err := checkName(name); err != nil {
			return err
		}
	}
	if images == nil {
		images = []string{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return writeJSON(g.file, &Gallery{Images: images})
}

func (g *GalleryStore) load() (*Gallery, error) {
	gallery := &Gallery{}
	found, err := readJSON(g.file, gallery)
	if err != nil {
		return nil, err
	}
	if found {
		if gallery.Images == nil {
			gallery.Images = []string{}
		}
		return gallery, nil
	}

	gallery.Images = []string{}
	entries, err := os.ReadDir(g.dir)
	if errors.Is(err, os.ErrNotExist) {
		return gallery, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan gallery dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(strings.ToLower(name), galleryPrefix) {
			continue
		}
		if _, err := imageExtension(name); err == nil {
			gallery.Images = append(gallery.Images, name)
		}
	}
	sort.Strings(gallery.Images)
	return gallery, nil
}

func (g *GalleryStore) createUnique(ext string) (string, *os.File, error) {
	stamp := g.now().Format("20060102150405")
	for i := 0; i < 100; i++ {
		name := fmt.Sprintf("%s_%s.%s", galleryPrefix, stamp, ext)
		if i > 0 {
			name = fmt.Sprintf("%s_%s_%d.%s", galleryPrefix, stamp, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(g.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("create image: %w", err)
		}
		return name, f, nil
	}
	return "", nil, fmt.Errorf("create image: no free name for %s", stamp)
}

func imageExtension(name string) (string, error) {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return "", ErrUnsupportedType
	}
	ext := strings.ToLower(name[i+1:])
	if !allowedExtensions[ext] {
		return "", ErrUnsupportedType
	}
	return ext, nil
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}
