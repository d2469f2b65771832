package gdrive

import (
	"context"
	"path"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"

	"diskcli/core"
)

// resolver maps slash paths onto Drive IDs. Folder IDs are cached for the
// lifetime of one operation only.
type resolver struct {
	d   *Drive
	ids map[string]string
}

func (d *Drive) newResolver() *resolver {
	return &resolver{d: d, ids: map[string]string{"/": rootID}}
}

func (r *resolver) child(ctx context.Context, parentID string, name string, foldersOnly bool) (*drive.File, error) {
	files, err := r.d.api.Find(ctx, parentID, name)
	if err != nil {
		return nil, err
	}

	for _, f := range files {
		if !foldersOnly || r.d.isFolder(f) {
			return f, nil
		}
	}
	return nil, &core.NotFoundError{Path: name}
}

// folderID walks p segment by segment, creating missing folders when create
// is set.
func (r *resolver) folderID(ctx context.Context, p string, create bool) (string, error) {
	current := "/"
	id := rootID

	for _, segment := range core.SplitRemotePath(p) {
		next := path.Join(current, segment)
		if cached, ok := r.ids[next]; ok {
			current, id = next, cached
			continue
		}

		f, err := r.child(ctx, id, segment, true)
		switch {
		case err == nil:
			id = f.Id
		case core.IsNotFound(err) && create:
			created, err := r.d.api.CreateFolder(ctx, segment, id)
			if err != nil {
				return "", err
			}
			r.d.logger.Debug("created folder", zap.String("path", next), zap.String("id", created.Id))
			id = created.Id
		case core.IsNotFound(err):
			return "", &core.NotFoundError{Path: next}
		default:
			return "", err
		}

		r.ids[next] = id
		current = next
	}

	return id, nil
}

func (r *resolver) ensureFolder(ctx context.Context, p string) (string, error) {
	return r.folderID(ctx, p, true)
}

// lookup resolves p to its file or folder without creating anything.
func (r *resolver) lookup(ctx context.Context, p string) (*drive.File, error) {
	p = core.CleanRemotePath(p)
	if p == "/" {
		return &drive.File{Id: rootID, Name: "/", MimeType: r.d.folderMime}, nil
	}

	parentID, err := r.folderID(ctx, path.Dir(p), false)
	if core.IsNotFound(err) {
		return nil, &core.NotFoundError{Path: p}
	}
	if err != nil {
		return nil, err
	}

	f, err := r.child(ctx, parentID, path.Base(p), false)
	if core.IsNotFound(err) {
		return nil, &core.NotFoundError{Path: p}
	}
	return f, err
}
