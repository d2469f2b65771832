//go:build windows

package platform

import (
	"os"

	"golang.org/x/sys/windows"
)

// SetupConsole turns on ANSI escape handling so coloured log levels render
// in cmd.exe and PowerShell. Redirected streams are left alone.
func SetupConsole() {
	for _, f := range []*os.File{os.Stdout, os.Stderr} {
		h := windows.Handle(f.Fd())

		var mode uint32
		if err := windows.GetConsoleMode(h, &mode); err != nil {
			continue
		}
		_ = windows.SetConsoleMode(h, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
	}
}
