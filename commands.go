package main

import (
	"fmt"
	"os"
	"strings"

	"diskcli/core"
)

func trimQuotes(p string) string {
	return strings.Trim(strings.TrimSpace(p), `"'`)
}

func unexpected(args []string) error {
	if len(args) > 0 {
		return core.Usagef("unexpected arguments: %s", strings.Join(args, " "))
	}
	return nil
}

func (c *listCommand) Execute(args []string) error {
	if err := unexpected(args); err != nil {
		return err
	}

	storage, err := c.app.storage()
	if err != nil {
		return err
	}

	p := core.CleanRemotePath(c.Args.Path)
	entries, err := storage.List(c.app.ctx, p)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintf(c.app.stdout, "%s: folder is empty\n", p)
		return nil
	}
	return printEntries(c.app.stdout, entries)
}

// localKind checks that local exists and matches the requested type.
func localKind(local string, kind string) (bool, error) {
	info, err := os.Stat(local)
	if err != nil {
		return false, fmt.Errorf("local path: %w", err)
	}

	switch kind {
	case "folder":
		if !info.IsDir() {
			return false, core.Usagef("%s is not a folder", local)
		}
	case "file":
		if info.IsDir() {
			return false, core.Usagef("%s is a folder, use --type folder", local)
		}
	}
	return info.IsDir(), nil
}

func (c *uploadCommand) Execute(args []string) error {
	if err := unexpected(args); err != nil {
		return err
	}

	storage, err := c.app.storage()
	if err != nil {
		return err
	}

	local := trimQuotes(c.Args.Local)
	isFolder, err := localKind(local, c.Type)
	if err != nil {
		return err
	}

	if c.Version && !storage.SupportsVersions() {
		fmt.Fprintf(c.app.stderr, "warning: %s keeps no version history, the remote copy is overwritten\n", storage.Backend())
	}

	report, err := storage.Upload(c.app.ctx, core.UploadRequest{
		LocalPath:    local,
		RemotePath:   core.CleanRemotePath(c.Args.Remote),
		IsFolder:     isFolder,
		AsNewVersion: c.Version,
	})
	if err != nil {
		printPartial(c.app.stderr, "uploaded", report)
		return err
	}

	printReport(c.app.stdout, "uploaded", report)
	return nil
}

func (c *downloadCommand) Execute(args []string) error {
	if err := unexpected(args); err != nil {
		return err
	}

	storage, err := c.app.storage()
	if err != nil {
		return err
	}

	report, err := storage.Download(c.app.ctx, core.DownloadRequest{
		RemotePath: core.CleanRemotePath(c.Args.Remote),
		LocalPath:  trimQuotes(c.Args.Local),
	})
	if err != nil {
		printPartial(c.app.stderr, "downloaded", report)
		return err
	}

	printReport(c.app.stdout, "downloaded", report)
	return nil
}

func (c *versionsListCommand) Execute(args []string) error {
	if err := unexpected(args); err != nil {
		return err
	}

	storage, err := c.app.storage()
	if err != nil {
		return err
	}

	p := core.CleanRemotePath(c.Args.Remote)
	versions, err := storage.ListVersions(c.app.ctx, p)
	if err != nil {
		return err
	}

	if len(versions) == 0 {
		fmt.Fprintf(c.app.stdout, "%s has no stored versions\n", p)
		return nil
	}
	return printVersions(c.app.stdout, versions)
}

func (c *versionsDownloadCommand) Execute(args []string) error {
	if err := unexpected(args); err != nil {
		return err
	}

	storage, err := c.app.storage()
	if err != nil {
		return err
	}

	p := core.CleanRemotePath(c.Args.Remote)
	local := trimQuotes(c.Args.Local)
	if err := storage.DownloadVersion(c.app.ctx, p, c.Args.VersionID, local); err != nil {
		return err
	}

	fmt.Fprintf(c.app.stdout, "downloaded version %s of %s to %s\n", c.Args.VersionID, p, local)
	return nil
}

func (c *aboutCommand) Execute(args []string) error {
	if err := unexpected(args); err != nil {
		return err
	}

	storage, err := c.app.storage()
	if err != nil {
		return err
	}

	info, err := storage.About(c.app.ctx)
	if err != nil {
		return err
	}
	return printAbout(c.app.stdout, storage.Backend(), info)
}
