package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type uploadItem struct {
	local  string
	remote string
}

type downloadItem struct {
	remote RemoteEntry
	local  string
}

// UploadTree mirrors the local folder localRoot under remoteRoot. Pending
// folders are kept on an explicit stack; the first failure stops the walk
// and the report lists what was already transferred.
func UploadTree(
	ctx context.Context,
	localRoot, remoteRoot string,
	ensureFolder func(ctx context.Context, remote string) error,
	uploadFile func(ctx context.Context, local, remote string) error,
) (TransferReport, error) {
	var report TransferReport

	info, err := os.Stat(localRoot)
	if err != nil {
		return report, err
	}
	if !info.IsDir() {
		return report, fmt.Errorf("%s is not a folder", localRoot)
	}

	remoteRoot = CleanRemotePath(remoteRoot)
	if err := ensureFolder(ctx, remoteRoot); err != nil {
		return report, err
	}
	report.addFolder(remoteRoot)

	stack := []uploadItem{{local: localRoot, remote: remoteRoot}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(item.local)
		if err != nil {
			return report, err
		}

		var folders []uploadItem
		for _, entry := range entries {
			local := filepath.Join(item.local, entry.Name())
			remote := path.Join(item.remote, entry.Name())

			switch {
			case entry.IsDir():
				if err := ensureFolder(ctx, remote); err != nil {
					return report, err
				}
				report.addFolder(remote)
				folders = append(folders, uploadItem{local: local, remote: remote})
			case entry.Type().IsRegular():
				if err := uploadFile(ctx, local, remote); err != nil {
					return report, fmt.Errorf("upload %s: %w", local, err)
				}
				report.addFile(remote)
			default:
				// symlinks, devices, sockets
				report.Skipped = append(report.Skipped, local)
			}
		}

		// reversed so folders are visited in name order
		for i := len(folders) - 1; i >= 0; i-- {
			stack = append(stack, folders[i])
		}
	}

	return report, nil
}

// DownloadTree mirrors the remote folder root into localRoot, listing one
// folder at a time from an explicit stack.
func DownloadTree(
	ctx context.Context,
	root RemoteEntry,
	localRoot string,
	list func(ctx context.Context, folder RemoteEntry) ([]RemoteEntry, error),
	fetch func(ctx context.Context, file RemoteEntry, local string) error,
) (TransferReport, error) {
	var report TransferReport

	if err := os.MkdirAll(localRoot, 0o755); err != nil {
		return report, err
	}
	report.addFolder(localRoot)

	stack := []downloadItem{{remote: root, local: localRoot}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := list(ctx, item.remote)
		if err != nil {
			return report, err
		}

		var folders []downloadItem
		taken := make(map[string]string, len(children))
		for _, child := range children {
			name, err := LocalName(child.Name)
			if err != nil {
				return report, err
			}
			if other, ok := taken[name]; ok {
				return report, fmt.Errorf("%s and %s would both be stored as %s", other, child.Path, filepath.Join(item.local, name))
			}
			taken[name] = child.Path
			local := filepath.Join(item.local, name)

			if child.IsFolder {
				if err := os.MkdirAll(local, 0o755); err != nil {
					return report, err
				}
				report.addFolder(local)
				folders = append(folders, downloadItem{remote: child, local: local})
				continue
			}

			if err := fetch(ctx, child, local); err != nil {
				return report, fmt.Errorf("download %s: %w", child.Path, err)
			}
			report.addFile(local)
		}

		for i := len(folders) - 1; i >= 0; i-- {
			stack = append(stack, folders[i])
		}
	}

	return report, nil
}

// LocalName maps a remote entry name onto a single local path element.
func LocalName(name string) (string, error) {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("remote entry name %q cannot be stored locally", name)
	}
	return name, nil
}

// WriteLocalFile creates localPath (and its parents) and fills it through
// write. A failed write removes the partial file.
func WriteLocalFile(localPath string, write func(w io.Writer) error) (err error) {
	if dir := filepath.Dir(localPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(localPath)
		}
	}()

	return write(f)
}

// OpenLocalFile returns a reopenable body for uploads together with its size.
func OpenLocalFile(localPath string) (func() (io.ReadCloser, error), int64, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%s is a folder", localPath)
	}

	open := func() (io.ReadCloser, error) {
		return os.Open(localPath)
	}
	return open, info.Size(), nil
}
