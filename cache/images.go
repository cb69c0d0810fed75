package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hazyhaar/chapterkb/chunk"
)

// ImageDir is where the page images of chapterID live under root.
func ImageDir(root, chapterID string) string {
	return filepath.Join(root, "images", Key(chapterID))
}

// WriteImages replaces the image directory of chapterID with one JPEG file
// per image and sets each image's SourcePath.
func WriteImages(root, chapterID string, images []chunk.PageImage) error {
	dir := ImageDir(root, chapterID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("cache: clear images: %w", err)
	}
	if len(images) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: mkdir images: %w", err)
	}
	for i := range images {
		p := filepath.Join(dir, fmt.Sprintf("page-%04d.jpg", images[i].Page))
		if err := os.WriteFile(p, images[i].Data, 0o644); err != nil {
			return fmt.Errorf("cache: write image: %w", err)
		}
		images[i].SourcePath = p
	}
	return nil
}
