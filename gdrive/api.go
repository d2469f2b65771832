package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"diskcli/core"
)

// driveAPI is the slice of the Drive v3 surface the backend needs. Errors
// are already translated into core error types.
type driveAPI interface {
	About(ctx context.Context) (*drive.About, error)
	Find(ctx context.Context, parentID string, name string) ([]*drive.File, error)
	Children(ctx context.Context, parentID string) ([]*drive.File, error)
	CreateFolder(ctx context.Context, name string, parentID string) (*drive.File, error)
	Create(ctx context.Context, name string, parentID string, media io.Reader) (*drive.File, error)
	Update(ctx context.Context, fileID string, media io.Reader, keepRevision bool) (*drive.File, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
	Revisions(ctx context.Context, fileID string) ([]*drive.Revision, error)
	DownloadRevision(ctx context.Context, fileID string, revisionID string) (io.ReadCloser, error)
}

const (
	fileFields     = "id, name, mimeType, size, modifiedTime, parents"
	listFields     = "nextPageToken, files(id, name, mimeType, size, modifiedTime, parents)"
	revisionFields = "nextPageToken, revisions(id, modifiedTime, size, keepForever)"
	pageSize       = 1000
)

type sdkAPI struct {
	srv        *drive.Service
	folderMime string
	endpoint   string
}

func (a *sdkAPI) About(ctx context.Context) (*drive.About, error) {
	about, err := a.srv.About.Get().Fields("user, storageQuota").Context(ctx).Do()
	return about, a.mapErr("about", err)
}

func (a *sdkAPI) Find(ctx context.Context, parentID string, name string) ([]*drive.File, error) {
	return a.list(ctx, findQuery(parentID, name))
}

func (a *sdkAPI) Children(ctx context.Context, parentID string) ([]*drive.File, error) {
	return a.list(ctx, childrenQuery(parentID))
}

func (a *sdkAPI) list(ctx context.Context, q string) ([]*drive.File, error) {
	result := []*drive.File{}
	pageToken := ""
	for {
		call := a.srv.Files.List().
			Q(q).
			Fields(listFields).
			PageSize(pageSize).
			OrderBy("name").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		r, err := call.Do()
		if err != nil {
			return nil, a.mapErr("list", err)
		}
		result = append(result, r.Files...)

		if r.NextPageToken == "" {
			return result, nil
		}
		pageToken = r.NextPageToken
	}
}

func (a *sdkAPI) CreateFolder(ctx context.Context, name string, parentID string) (*drive.File, error) {
	f := &drive.File{
		Name:     name,
		MimeType: a.folderMime,
		Parents:  []string{parentID},
	}

	result, err := a.srv.Files.Create(f).Fields(fileFields).Context(ctx).Do()
	return result, a.mapErr("create folder", err)
}

func (a *sdkAPI) Create(ctx context.Context, name string, parentID string, media io.Reader) (*drive.File, error) {
	f := &drive.File{
		Name:    name,
		Parents: []string{parentID},
	}

	result, err := a.srv.Files.Create(f).Media(media).Fields(fileFields).Context(ctx).Do()
	return result, a.mapErr("upload", err)
}

func (a *sdkAPI) Update(ctx context.Context, fileID string, media io.Reader, keepRevision bool) (*drive.File, error) {
	result, err := a.srv.Files.Update(fileID, &drive.File{}).
		Media(media).
		KeepRevisionForever(keepRevision).
		Fields(fileFields).
		Context(ctx).
		Do()
	return result, a.mapErr("update", err)
}

func (a *sdkAPI) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	res, err := a.srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, a.mapErr("download", err)
	}
	return res.Body, nil
}

func (a *sdkAPI) Revisions(ctx context.Context, fileID string) ([]*drive.Revision, error) {
	result := []*drive.Revision{}
	pageToken := ""
	for {
		call := a.srv.Revisions.List(fileID).Fields(revisionFields).PageSize(pageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		r, err := call.Do()
		if err != nil {
			return nil, a.mapErr("list revisions", err)
		}
		result = append(result, r.Revisions...)

		if r.NextPageToken == "" {
			return result, nil
		}
		pageToken = r.NextPageToken
	}
}

func (a *sdkAPI) DownloadRevision(ctx context.Context, fileID string, revisionID string) (io.ReadCloser, error) {
	res, err := a.srv.Revisions.Get(fileID, revisionID).Context(ctx).Download()
	if err != nil {
		return nil, a.mapErr("download revision", err)
	}
	return res.Body, nil
}

func (a *sdkAPI) mapErr(op string, err error) error {
	return mapError(op, a.endpoint, err)
}

// mapError translates SDK failures into the core taxonomy.
func mapError(op string, endpoint string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = core.VendorMessage([]byte(gerr.Body))
		}
		return &core.APIError{StatusCode: gerr.Code, Message: msg}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &core.TransportError{Op: op, URL: endpoint, Err: err}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func findQuery(parentID string, name string) string {
	return fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", escapeQuery(name), escapeQuery(parentID))
}

func childrenQuery(parentID string) string {
	return fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(parentID))
}
