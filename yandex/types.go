package yandex

import (
	"strings"
	"time"

	"diskcli/core"
)

const (
	typeDir  = "dir"
	typeFile = "file"
)

type resource struct {
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	Type       string        `json:"type"`
	Size       *int64        `json:"size,omitempty"`
	Modified   *time.Time    `json:"modified,omitempty"`
	ResourceID string        `json:"resource_id,omitempty"`
	Embedded   *resourceList `json:"_embedded,omitempty"`
}

type resourceList struct {
	Items  []resource `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// link is the answer of the upload/download endpoints: a pre-signed URL to
// transfer the bytes with.
type link struct {
	Href      string `json:"href"`
	Method    string `json:"method"`
	Templated bool   `json:"templated"`
}

type diskInfo struct {
	TotalSpace int64 `json:"total_space"`
	UsedSpace  int64 `json:"used_space"`
	User       struct {
		Login       string `json:"login"`
		DisplayName string `json:"display_name"`
	} `json:"user"`
}

// remotePath strips the "disk:" scheme the API puts in front of paths.
func remotePath(p string) string {
	return core.CleanRemotePath(strings.TrimPrefix(p, "disk:"))
}

func (r resource) entry() core.RemoteEntry {
	return core.RemoteEntry{
		ID:       r.ResourceID,
		Name:     r.Name,
		Path:     remotePath(r.Path),
		IsFolder: r.Type == typeDir,
		Size:     r.Size,
		Modified: r.Modified,
	}
}
