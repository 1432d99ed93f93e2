//go:build unix

package layout

import "golang.org/x/sys/unix"

func chmodExecutable(path string) error {
	return unix.Chmod(path, 0o755)
}
