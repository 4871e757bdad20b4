// Package storage keeps uploaded recipe images somewhere addressable by URL.
//
// Two backends exist: Local writes under a directory that the server also
// serves at a URL prefix, and S3 writes to an S3-compatible bucket (AWS,
// MinIO). Both address objects by the same relative key, which is what the
// database stores.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// RecipeImageDir is the key prefix every recipe image lives under.
const RecipeImageDir = "uploads/recipe"

// ErrNotImage is returned by DetectImage for content that is not a
// supported raster image.
var ErrNotImage = errors.New("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")

// Storage persists blobs by key and turns keys into public URLs.
type Storage interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// RecipeImageKey builds a fresh, collision-free key for an uploaded image.
// The extension comes from the sniffed content type, never from the
// client's file name.
//
//	RecipeImageKey("image/jpeg") → "uploads/recipe/0b6f...e2.jpg"
func RecipeImageKey(contentType string) string {
	return fmt.Sprintf("%s/%s%s", RecipeImageDir, uuid.New(), ExtensionFor(contentType))
}

// imageTypes are the formats accepted for recipe images.
var imageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

// imageExtensions are the file name extensions accepted on upload.
var imageExtensions = []string{
	".bmp", ".gif", ".jpe", ".jpeg", ".jpg", ".png", ".tif", ".tiff", ".webp",
}

// CheckImageExtension rejects a file name whose extension is not an image
// extension. A name without an extension is accepted.
func CheckImageExtension(filename string) error {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || slices.Contains(imageExtensions, ext) {
		return nil
	}
	allowed := make([]string, len(imageExtensions))
	for i, e := range imageExtensions {
		allowed[i] = strings.TrimPrefix(e, ".")
	}
	return fmt.Errorf("File extension \u201c%s\u201d is not allowed. Allowed extensions are: %s.",
		strings.TrimPrefix(ext, "."), strings.Join(allowed, ", "))
}

// DetectImage sniffs data and returns its MIME type if it is an accepted
// image format. The client-supplied Content-Type is never trusted.
func DetectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNotImage
	}
	mtype := mimetype.Detect(data)
	for _, allowed := range imageTypes {
		if mtype.Is(allowed) {
			return allowed, nil
		}
	}
	return "", ErrNotImage
}

// ExtensionFor returns the canonical extension (".png") for a MIME type
// detected by DetectImage.
func ExtensionFor(contentType string) string {
	if mt := mimetype.Lookup(contentType); mt != nil {
		return mt.Extension()
	}
	return ""
}

// validKey rejects keys that could escape the storage root.
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "" {
			return fmt.Errorf("storage: invalid key %q", key)
		}
	}
	return nil
}
