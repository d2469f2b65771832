package main

import (
	"github.com/jessevdk/go-flags"

	"diskcli/core"
)

type Options struct {
	Service   string `short:"s" long:"service" env:"DISKCLI_SERVICE" required:"yes" value-name:"yandex|google" description:"Cloud storage to talk to"`
	ConfigDir string `long:"config-dir" value-name:"DIR" description:"Folder holding yandex.env / google.env (default: working directory, then the user config folder)"`
	Verbose   []bool `short:"v" long:"verbose" description:"Log every request"`
	LogFile   string `long:"log-file" value-name:"FILE" description:"Write the log to FILE instead of stderr"`
}

type listCommand struct {
	app  *App
	Args struct {
		Path string `positional-arg-name:"remote-path" description:"Folder or file to list (default: /)"`
	} `positional-args:"yes"`
}

type uploadCommand struct {
	app     *App
	Type    string `long:"type" choice:"file" choice:"folder" description:"What the local path is (inferred when omitted)"`
	Version bool   `long:"version" description:"Keep the replaced content as a version (only Google Drive keeps versions)"`
	Args    struct {
		Local  string `positional-arg-name:"local-path"`
		Remote string `positional-arg-name:"remote-path"`
	} `positional-args:"yes" required:"yes"`
}

type downloadCommand struct {
	app  *App
	Args struct {
		Remote string `positional-arg-name:"remote-path"`
		Local  string `positional-arg-name:"local-path"`
	} `positional-args:"yes" required:"yes"`
}

type versionsCommand struct{}

type versionsListCommand struct {
	app  *App
	Args struct {
		Remote string `positional-arg-name:"remote-path"`
	} `positional-args:"yes" required:"yes"`
}

type versionsDownloadCommand struct {
	app  *App
	Args struct {
		Remote    string `positional-arg-name:"remote-path"`
		VersionID string `positional-arg-name:"version-id"`
		Local     string `positional-arg-name:"local-path"`
	} `positional-args:"yes" required:"yes"`
}

type aboutCommand struct {
	app *App
}

// newParser wires the command tree. Every command reaches the backend
// through app.
func newParser(app *App) (*flags.Parser, error) {
	parser := flags.NewNamedParser(core.APP_NAME, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.AddGroup("Application Options", "", app.opts); err != nil {
		return nil, err
	}

	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{"list", "List a remote folder", "Print the entries of a remote folder, one per line.", &listCommand{app: app}},
		{"upload", "Upload a file or folder", "Upload a local file or folder. Missing remote folders are created.", &uploadCommand{app: app}},
		{"download", "Download a file or folder", "Download a remote file or folder, mirroring its layout locally.", &downloadCommand{app: app}},
		{"about", "Check access to the disk", "Print the account and the space used on the disk.", &aboutCommand{app: app}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			return nil, err
		}
	}

	versions, err := parser.AddCommand("versions", "Work with file versions", "List or download stored versions of a file (Google Drive only).", &versionsCommand{})
	if err != nil {
		return nil, err
	}
	if _, err := versions.AddCommand("list", "List versions of a file", "", &versionsListCommand{app: app}); err != nil {
		return nil, err
	}
	if _, err := versions.AddCommand("download", "Download one version of a file", "", &versionsDownloadCommand{app: app}); err != nil {
		return nil, err
	}

	return parser, nil
}
