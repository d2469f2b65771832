//go:build !windows

package platform

// SetupConsole is a no-op where terminals understand ANSI escapes natively.
func SetupConsole() {}
