//go:build windows

package logger

// isTerminal always reports false on Windows; plain text output is used.
func isTerminal(fd uintptr) bool {
	return false
}
