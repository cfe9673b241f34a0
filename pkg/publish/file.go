package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	perrors "github.com/matzehuels/poissonfields/pkg/errors"
)

// File writes each post as <dir>/<id>.png with the caption in <id>.txt.
type File struct {
	Dir string
}

// NewFile creates a file publisher rooted at dir.
func NewFile(dir string) *File {
	return &File{Dir: dir}
}

// Publish writes the image and caption. A post without ID gets a random one.
func (f *File) Publish(ctx context.Context, post Post) error {
	if err := ctx.Err(); err != nil {
		return perrors.Wrap(perrors.ErrCodePublish, err, "publish cancelled")
	}
	if len(post.Image) == 0 {
		return perrors.New(perrors.ErrCodePublish, "post has no image")
	}
	id := post.ID
	if id == "" {
		id = uuid.NewString()
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return perrors.Wrap(perrors.ErrCodePublish, err, "create %s", f.Dir)
	}

	base := filepath.Join(f.Dir, id)
	if err := os.WriteFile(base+".png", post.Image, 0o644); err != nil {
		return perrors.Wrap(perrors.ErrCodePublish, err, "write image")
	}
	if err := os.WriteFile(base+".txt", []byte(post.Caption+"\n"), 0o644); err != nil {
		return perrors.Wrap(perrors.ErrCodePublish, err, "write caption")
	}
	return nil
}

// Path returns where the image for id is written.
func (f *File) Path(id string) string {
	return filepath.Join(f.Dir, fmt.Sprintf("%s.png", id))
}
