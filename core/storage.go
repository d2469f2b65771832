package core

import (
	"context"
	"strings"
)

type Backend string

const (
	Yandex Backend = "yandex"
	Google Backend = "google"
)

// Backends lists every backend the client knows how to build.
func Backends() []Backend {
	return []Backend{Yandex, Google}
}

func ParseBackend(name string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Backends() {
		if b == known {
			return b, nil
		}
	}
	return "", Usagef("unsupported service %q (available: yandex, google)", name)
}

func (b Backend) EnvPrefix() string {
	return strings.ToUpper(string(b)) + "_"
}

// Storage is the capability set every backend implements.
//
// Upload with AsNewVersion only retains history where SupportsVersions
// reports true. Backends without revision history overwrite in place either
// way, and ListVersions/DownloadVersion fail with *UnsupportedError.
type Storage interface {
	Backend() Backend
	SupportsVersions() bool

	About(ctx context.Context) (AccountInfo, error)
	EnsureFolder(ctx context.Context, path string) error
	List(ctx context.Context, path string) ([]RemoteEntry, error)
	Upload(ctx context.Context, req UploadRequest) (TransferReport, error)
	Download(ctx context.Context, req DownloadRequest) (TransferReport, error)
	ListVersions(ctx context.Context, path string) ([]VersionInfo, error)
	DownloadVersion(ctx context.Context, path string, versionID string, localPath string) error
}
