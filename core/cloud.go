package core

import (
	"path"
	"strings"
	"time"
)

// RemoteEntry is one file or folder as reported by a listing call.
type RemoteEntry struct {
	ID       string
	Name     string
	Path     string
	IsFolder bool
	Size     *int64
	Modified *time.Time
}

// VersionInfo identifies one historical revision of a remote file. ID is
// backend specific and opaque to callers.
type VersionInfo struct {
	ID          string
	Modified    time.Time
	Size        *int64
	DownloadURL string
	KeepForever bool
}

type UploadRequest struct {
	LocalPath    string
	RemotePath   string
	IsFolder     bool
	AsNewVersion bool
}

type DownloadRequest struct {
	RemotePath string
	LocalPath  string
}

type AccountInfo struct {
	User       string
	TotalSpace int64
	UsedSpace  int64
}

// TransferReport lists the remote (upload) or local (download) paths a
// transfer completed, including the ones finished before an abort. Skipped
// holds local entries that are neither files nor folders.
type TransferReport struct {
	Files   []string
	Folders []string
	Skipped []string
}

func (r *TransferReport) addFile(p string) {
	r.Files = append(r.Files, p)
}

func (r *TransferReport) addFolder(p string) {
	r.Folders = append(r.Folders, p)
}

// CleanRemotePath normalises a remote path to a slash-rooted form. Surrounding
// quotes are dropped so paths pasted with shell quoting still resolve.
func CleanRemotePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), `"'`)
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Clean("/" + p)
}

// SplitRemotePath returns the non-empty segments of a remote path.
func SplitRemotePath(p string) []string {
	p = CleanRemotePath(p)
	if p == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

func Int64Ptr(v int64) *int64 {
	return &v
}
