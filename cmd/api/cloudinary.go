package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// Image extensions we accept for game media and profile pictures. Checked
// against the original filename before any network call.
var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var ErrUnsupportedMediaType = errors.New("unsupported file extension")

func validateImageExtension(originalName string) error {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedImageExtensions[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedMediaType, ext)
	}
	return nil
}

// mediaPublicID builds a collision-resistant object name from the owning
// entity and a random suffix, e.g. "game_12_1f9a...".
func mediaPublicID(prefix string, ownerID int64) string {
	return fmt.Sprintf("%s_%d_%s", prefix, ownerID, uuid.NewString())
}

// storeMedia validates the extension, streams the file to Cloudinary and
// returns the public URL. Validation failures surface before any network
// call; upload failures come back wrapped so handlers can answer with the
// upload-specific error response and persist nothing.
func (app *application) storeMedia(ctx context.Context, file io.Reader, originalName, folder, publicID string) (string, error) {
	if err := validateImageExtension(originalName); err != nil {
		return "", err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := app.cld.Upload.Upload(uploadCtx, file, uploader.UploadParams{
		Folder:    folder,
		PublicID:  publicID,
		Overwrite: api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	return resp.SecureURL, nil
}
