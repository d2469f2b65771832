// Package yandex implements core.Storage on top of the Yandex Disk REST API.
//
// Transfers are two-step: the resources/upload and resources/download
// endpoints hand out a pre-signed href, and the bytes move through that href
// without the OAuth header. Yandex Disk keeps no addressable revisions, so the
// version operations fail with *core.UnsupportedError and uploads always
// overwrite in place.
package yandex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"diskcli/core"
)

const defaultPageSize = 1000

type Disk struct {
	cfg      core.BackendConfig
	client   *core.Client
	logger   *zap.Logger
	pageSize int
}

var _ core.Storage = (*Disk)(nil)

func New(cfg core.BackendConfig, logger *zap.Logger) *Disk {
	logger = core.LoggerOrNop(logger).With(zap.String("service", string(core.Yandex)))
	return &Disk{
		cfg:      cfg,
		client:   core.NewClient(cfg, logger),
		logger:   logger,
		pageSize: defaultPageSize,
	}
}

func (d *Disk) Backend() core.Backend {
	return core.Yandex
}

func (d *Disk) SupportsVersions() bool {
	return false
}

func (d *Disk) endpoint(p string) string {
	return strings.TrimRight(d.cfg.BaseURL, "/") + p
}

func (d *Disk) About(ctx context.Context) (core.AccountInfo, error) {
	var info diskInfo
	_, err := d.client.JSON(ctx, &core.Request{Method: http.MethodGet, URL: d.endpoint("")}, &info)
	if err != nil {
		return core.AccountInfo{}, err
	}

	user := info.User.DisplayName
	if user == "" {
		user = info.User.Login
	}
	return core.AccountInfo{User: user, TotalSpace: info.TotalSpace, UsedSpace: info.UsedSpace}, nil
}

// metadata fetches one resource. Folder children are paged by limit/offset.
func (d *Disk) metadata(ctx context.Context, p string, limit, offset int) (resource, error) {
	query := url.Values{}
	query.Set("path", p)
	query.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}

	var res resource
	_, err := d.client.JSON(ctx, &core.Request{
		Method: http.MethodGet,
		URL:    d.endpoint(d.cfg.ResourcesEndpoint),
		Query:  query,
	}, &res)
	if core.IsStatus(err, http.StatusNotFound) {
		return resource{}, &core.NotFoundError{Path: p}
	}
	if err != nil {
		return resource{}, err
	}
	return res, nil
}

// EnsureFolder creates p and any missing ancestors. Existing folders are
// left untouched.
func (d *Disk) EnsureFolder(ctx context.Context, p string) error {
	current := ""
	for _, part := range core.SplitRemotePath(p) {
		current += "/" + part

		res, err := d.metadata(ctx, current, 0, 0)
		if err == nil {
			if res.Type != typeDir {
				return fmt.Errorf("%s exists and is not a folder", current)
			}
			continue
		}
		if !core.IsNotFound(err) {
			return err
		}

		if err := d.createFolder(ctx, current); err != nil {
			return err
		}
	}
	return nil
}

func (d *Disk) createFolder(ctx context.Context, p string) error {
	query := url.Values{}
	query.Set("path", p)

	_, err := d.client.JSON(ctx, &core.Request{
		Method: http.MethodPut,
		URL:    d.endpoint(d.cfg.ResourcesEndpoint),
		Query:  query,
	}, nil)
	if core.IsStatus(err, http.StatusConflict) {
		// created concurrently
		return nil
	}
	if err != nil {
		return fmt.Errorf("create folder %s: %w", p, err)
	}

	d.logger.Debug("created folder", zap.String("path", p))
	return nil
}

func (d *Disk) List(ctx context.Context, p string) ([]core.RemoteEntry, error) {
	p = core.CleanRemotePath(p)
	entries := []core.RemoteEntry{}

	offset := 0
	for {
		res, err := d.metadata(ctx, p, d.pageSize, offset)
		if err != nil {
			return nil, err
		}
		if res.Type != typeDir {
			return []core.RemoteEntry{res.entry()}, nil
		}
		if res.Embedded == nil || len(res.Embedded.Items) == 0 {
			return entries, nil
		}

		for _, item := range res.Embedded.Items {
			entries = append(entries, item.entry())
		}

		offset += len(res.Embedded.Items)
		if offset >= res.Embedded.Total {
			return entries, nil
		}
	}
}

// Upload overwrites the target in place. AsNewVersion makes no difference on
// Yandex Disk; SupportsVersions reports false so callers can say so.
func (d *Disk) Upload(ctx context.Context, req core.UploadRequest) (core.TransferReport, error) {
	remote := core.CleanRemotePath(req.RemotePath)
	if req.AsNewVersion {
		d.logger.Debug("version history is not kept, overwriting in place", zap.String("path", remote))
	}

	if req.IsFolder {
		return core.UploadTree(ctx, req.LocalPath, remote, d.EnsureFolder, d.uploadFile)
	}

	var report core.TransferReport
	if err := d.EnsureFolder(ctx, path.Dir(remote)); err != nil {
		return report, err
	}
	if err := d.uploadFile(ctx, req.LocalPath, remote); err != nil {
		return report, err
	}
	report.Files = append(report.Files, remote)
	return report, nil
}

func (d *Disk) uploadFile(ctx context.Context, local, remote string) error {
	open, size, err := core.OpenLocalFile(local)
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("path", remote)
	query.Set("overwrite", "true")

	var target link
	_, err = d.client.JSON(ctx, &core.Request{
		Method: http.MethodGet,
		URL:    d.endpoint(d.cfg.UploadEndpoint),
		Query:  query,
	}, &target)
	if err != nil {
		return fmt.Errorf("request upload url for %s: %w", remote, err)
	}
	if target.Href == "" {
		return &core.APIError{StatusCode: http.StatusOK, Message: "upload link without href"}
	}

	method := target.Method
	if method == "" {
		method = http.MethodPut
	}

	_, err = d.client.JSON(ctx, &core.Request{
		Method:        method,
		URL:           target.Href,
		Body:          open,
		ContentLength: size,
		Header:        http.Header{"Content-Type": []string{"application/octet-stream"}},
		Anonymous:     true,
	}, nil)
	if err != nil {
		return err
	}

	d.logger.Debug("uploaded file", zap.String("local", local), zap.String("remote", remote), zap.Int64("size", size))
	return nil
}

func (d *Disk) Download(ctx context.Context, req core.DownloadRequest) (core.TransferReport, error) {
	remote := core.CleanRemotePath(req.RemotePath)

	res, err := d.metadata(ctx, remote, 0, 0)
	if err != nil {
		return core.TransferReport{}, err
	}

	if res.Type == typeDir {
		return core.DownloadTree(ctx, res.entry(), req.LocalPath, d.children, d.fetch)
	}

	var report core.TransferReport
	if err := d.fetch(ctx, res.entry(), req.LocalPath); err != nil {
		return report, err
	}
	report.Files = append(report.Files, req.LocalPath)
	return report, nil
}

func (d *Disk) children(ctx context.Context, folder core.RemoteEntry) ([]core.RemoteEntry, error) {
	return d.List(ctx, folder.Path)
}

func (d *Disk) fetch(ctx context.Context, file core.RemoteEntry, local string) error {
	query := url.Values{}
	query.Set("path", file.Path)

	var source link
	_, err := d.client.JSON(ctx, &core.Request{
		Method: http.MethodGet,
		URL:    d.endpoint(d.cfg.DownloadEndpoint),
		Query:  query,
	}, &source)
	if core.IsStatus(err, http.StatusNotFound) {
		return &core.NotFoundError{Path: file.Path}
	}
	if err != nil {
		return fmt.Errorf("request download url for %s: %w", file.Path, err)
	}
	if source.Href == "" {
		return &core.APIError{StatusCode: http.StatusOK, Message: "download link without href"}
	}

	return core.WriteLocalFile(local, func(w io.Writer) error {
		n, err := d.client.Stream(ctx, &core.Request{
			Method:    http.MethodGet,
			URL:       source.Href,
			Header:    http.Header{"Accept": []string{"*/*"}},
			Anonymous: true,
		}, w)
		if err == nil {
			d.logger.Debug("downloaded file", zap.String("remote", file.Path), zap.String("local", local), zap.Int64("size", n))
		}
		return err
	})
}

func (d *Disk) ListVersions(ctx context.Context, p string) ([]core.VersionInfo, error) {
	return nil, &core.UnsupportedError{Backend: core.Yandex, Op: "listing versions"}
}

func (d *Disk) DownloadVersion(ctx context.Context, p string, versionID string, localPath string) error {
	return &core.UnsupportedError{Backend: core.Yandex, Op: "downloading versions"}
}
