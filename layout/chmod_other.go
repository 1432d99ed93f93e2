//go:build !unix

package layout

import "os"

func chmodExecutable(path string) error {
	return os.Chmod(path, 0o755)
}
