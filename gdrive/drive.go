// Package gdrive implements core.Storage for Google Drive through the Drive
// v3 SDK.
//
// Drive addresses files by ID, so every path is resolved from "root" one
// segment at a time. Uploading over an existing file updates its content in
// place; with AsNewVersion the previous revision is pinned
// (keepRevisionForever) and stays reachable through ListVersions and
// DownloadVersion.
package gdrive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"diskcli/core"
)

const rootID = "root"

type Drive struct {
	api        driveAPI
	folderMime string
	logger     *zap.Logger
}

var _ core.Storage = (*Drive)(nil)

// New builds the Drive service over an HTTP client carrying cfg's token.
func New(ctx context.Context, cfg core.BackendConfig, logger *zap.Logger) (*Drive, error) {
	endpoint := serviceEndpoint(cfg.BaseURL)
	srv, err := drive.NewService(ctx,
		option.WithHTTPClient(core.NewHTTPClient(cfg)),
		option.WithEndpoint(endpoint),
	)
	if err != nil {
		return nil, &core.ConfigurationError{Backend: core.Google, Key: core.Google.EnvPrefix() + "BASE_URL", Err: err}
	}

	api := &sdkAPI{srv: srv, folderMime: cfg.FolderMimeType, endpoint: endpoint}
	return newDrive(api, cfg.FolderMimeType, logger), nil
}

// serviceEndpoint adds the trailing slash the SDK needs to resolve "files"
// and "about" below the configured path instead of replacing its last segment.
func serviceEndpoint(base string) string {
	return strings.TrimRight(base, "/") + "/"
}

func newDrive(api driveAPI, folderMime string, logger *zap.Logger) *Drive {
	if folderMime == "" {
		folderMime = core.DefaultFolderMimeType
	}
	return &Drive{
		api:        api,
		folderMime: folderMime,
		logger:     core.LoggerOrNop(logger).With(zap.String("service", string(core.Google))),
	}
}

func (d *Drive) Backend() core.Backend {
	return core.Google
}

func (d *Drive) SupportsVersions() bool {
	return true
}

func (d *Drive) isFolder(f *drive.File) bool {
	return f.MimeType == d.folderMime
}

func (d *Drive) entry(f *drive.File, p string) core.RemoteEntry {
	e := core.RemoteEntry{
		ID:       f.Id,
		Name:     f.Name,
		Path:     p,
		IsFolder: d.isFolder(f),
	}
	if !e.IsFolder {
		e.Size = core.Int64Ptr(f.Size)
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		e.Modified = &t
	}
	return e
}

func (d *Drive) About(ctx context.Context) (core.AccountInfo, error) {
	about, err := d.api.About(ctx)
	if err != nil {
		return core.AccountInfo{}, err
	}

	var info core.AccountInfo
	if about.User != nil {
		info.User = about.User.DisplayName
		if about.User.EmailAddress != "" {
			info.User = fmt.Sprintf("%s <%s>", about.User.DisplayName, about.User.EmailAddress)
		}
	}
	if about.StorageQuota != nil {
		info.TotalSpace = about.StorageQuota.Limit
		info.UsedSpace = about.StorageQuota.Usage
	}
	return info, nil
}

func (d *Drive) EnsureFolder(ctx context.Context, p string) error {
	_, err := d.newResolver().ensureFolder(ctx, p)
	return err
}

func (d *Drive) List(ctx context.Context, p string) ([]core.RemoteEntry, error) {
	p = core.CleanRemotePath(p)

	f, err := d.newResolver().lookup(ctx, p)
	if err != nil {
		return nil, err
	}
	if !d.isFolder(f) {
		return []core.RemoteEntry{d.entry(f, p)}, nil
	}

	return d.children(ctx, d.entry(f, p))
}

func (d *Drive) children(ctx context.Context, folder core.RemoteEntry) ([]core.RemoteEntry, error) {
	files, err := d.api.Children(ctx, folder.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]core.RemoteEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, d.entry(f, path.Join(folder.Path, f.Name)))
	}
	return entries, nil
}

// Upload creates missing files and updates existing ones in place. With
// AsNewVersion the replaced content is kept as a permanent revision.
func (d *Drive) Upload(ctx context.Context, req core.UploadRequest) (core.TransferReport, error) {
	remote := core.CleanRemotePath(req.RemotePath)
	res := d.newResolver()

	uploadFile := func(ctx context.Context, local, remote string) error {
		return d.uploadFile(ctx, res, local, remote, req.AsNewVersion)
	}

	if req.IsFolder {
		ensureFolder := func(ctx context.Context, remote string) error {
			_, err := res.ensureFolder(ctx, remote)
			return err
		}
		return core.UploadTree(ctx, req.LocalPath, remote, ensureFolder, uploadFile)
	}

	var report core.TransferReport
	if err := uploadFile(ctx, req.LocalPath, remote); err != nil {
		return report, err
	}
	report.Files = append(report.Files, remote)
	return report, nil
}

func (d *Drive) uploadFile(ctx context.Context, res *resolver, local, remote string, asNewVersion bool) error {
	if remote == "/" {
		return fmt.Errorf("cannot upload a file over the drive root")
	}

	parentID, err := res.ensureFolder(ctx, path.Dir(remote))
	if err != nil {
		return err
	}

	name := path.Base(remote)
	matches, err := d.api.Find(ctx, parentID, name)
	if err != nil {
		return err
	}

	var existing *drive.File
	for _, m := range matches {
		if !d.isFolder(m) {
			existing = m
			break
		}
	}
	if existing == nil && len(matches) > 0 {
		return fmt.Errorf("%s exists and is a folder", remote)
	}

	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()

	if existing != nil {
		if _, err := d.api.Update(ctx, existing.Id, f, asNewVersion); err != nil {
			return err
		}
		d.logger.Debug("updated file", zap.String("remote", remote), zap.Bool("keep_revision", asNewVersion))
		return nil
	}

	if _, err := d.api.Create(ctx, name, parentID, f); err != nil {
		return err
	}
	d.logger.Debug("created file", zap.String("remote", remote))
	return nil
}

func (d *Drive) Download(ctx context.Context, req core.DownloadRequest) (core.TransferReport, error) {
	remote := core.CleanRemotePath(req.RemotePath)

	f, err := d.newResolver().lookup(ctx, remote)
	if err != nil {
		return core.TransferReport{}, err
	}

	if d.isFolder(f) {
		return core.DownloadTree(ctx, d.entry(f, remote), req.LocalPath, d.children, d.fetch)
	}

	var report core.TransferReport
	if err := d.fetch(ctx, d.entry(f, remote), req.LocalPath); err != nil {
		return report, err
	}
	report.Files = append(report.Files, req.LocalPath)
	return report, nil
}

func (d *Drive) fetch(ctx context.Context, file core.RemoteEntry, local string) error {
	body, err := d.api.Download(ctx, file.ID)
	if err != nil {
		return err
	}
	defer body.Close()

	return core.WriteLocalFile(local, func(w io.Writer) error {
		_, err := io.Copy(w, body)
		return err
	})
}

func (d *Drive) ListVersions(ctx context.Context, p string) ([]core.VersionInfo, error) {
	p = core.CleanRemotePath(p)

	f, err := d.newResolver().lookup(ctx, p)
	if err != nil {
		return nil, err
	}
	if d.isFolder(f) {
		return nil, fmt.Errorf("%s is a folder, versions exist only for files", p)
	}

	revisions, err := d.api.Revisions(ctx, f.Id)
	if core.IsStatus(err, 404) {
		return nil, &core.NotFoundError{Path: p}
	}
	if err != nil {
		return nil, err
	}

	versions := make([]core.VersionInfo, 0, len(revisions))
	for _, r := range revisions {
		v := core.VersionInfo{ID: r.Id, KeepForever: r.KeepForever}
		if r.Size > 0 {
			v.Size = core.Int64Ptr(r.Size)
		}
		if t, err := time.Parse(time.RFC3339, r.ModifiedTime); err == nil {
			v.Modified = t
		}
		versions = append(versions, v)
	}
	return versions, nil
}

func (d *Drive) DownloadVersion(ctx context.Context, p string, versionID string, localPath string) error {
	p = core.CleanRemotePath(p)

	f, err := d.newResolver().lookup(ctx, p)
	if err != nil {
		return err
	}
	if d.isFolder(f) {
		return fmt.Errorf("%s is a folder, versions exist only for files", p)
	}

	body, err := d.api.DownloadRevision(ctx, f.Id, versionID)
	if core.IsStatus(err, 404) {
		return &core.NotFoundError{Path: p, Version: versionID}
	}
	if err != nil {
		return err
	}
	defer body.Close()

	return core.WriteLocalFile(localPath, func(w io.Writer) error {
		_, err := io.Copy(w, body)
		return err
	})
}
