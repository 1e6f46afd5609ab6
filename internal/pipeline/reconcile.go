package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// Reconciler runs the reconciliation stage.
type Reconciler struct {
	remote Remote
	logger *slog.Logger
}

// NewReconciler creates the reconciliation stage.
func NewReconciler(remote Remote, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{remote: remote, logger: logger}
}

// UpdateFor builds the image update carrying the scene's attributes.
func UpdateFor(scene *Scene) ImageUpdate {
	u := ImageUpdate{
		TagIDs:     append([]string{}, scene.TagIDs...),
		GalleryIDs: append([]string{}, scene.GalleryIDs...),
	}
	if scene.Date != "" {
		date := scene.Date
		u.Date = &date
	}
	return u
}

// Reconcile finds the image stored at path and writes the scene's tags,
// galleries and date onto it. It makes exactly one attempt.
func (r *Reconciler) Reconcile(ctx context.Context, scene *Scene, path string) (string, error) {
	images, err := r.remote.FindImagesByPath(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: find image: %w", ErrUpdate, err)
	}
	switch len(images) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRecordNotFound, path)
	case 1:
	default:
		return "", fmt.Errorf("%w: %d images share path %s", ErrRecordNotFound, len(images), path)
	}

	id, err := r.remote.UpdateImage(ctx, images[0].ID, UpdateFor(scene))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	r.logger.Info("image updated", "image_id", id, "scene_id", scene.ID,
		"tags", len(scene.TagIDs), "galleries", len(scene.GalleryIDs))
	return id, nil
}
