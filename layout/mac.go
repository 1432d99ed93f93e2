package layout

import (
	"fmt"
	"os"
	"path/filepath"

	"howett.net/plist"
)

// infoPlist is the minimal shape needed from a macOS bundle's Info.plist.
type infoPlist struct {
	CFBundleExecutable string `plist:"CFBundleExecutable"`
}

// FinalizeMacBundle parses the Info.plist recorded by Prepare and marks
// the bundle's primary executable (<Contents>/MacOS/<CFBundleExecutable>)
// as executable. It is a no-op when infoPlistPath is empty, since not
// every build plants a macOS bundle.
func FinalizeMacBundle(infoPlistPath string) error {
	if infoPlistPath == "" {
		return nil
	}

	f, err := os.Open(infoPlistPath)
	if err != nil {
		return fmt.Errorf("layout: open Info.plist: %w", err)
	}
	defer f.Close()

	var info infoPlist
	if err := plist.NewDecoder(f).Decode(&info); err != nil {
		return fmt.Errorf("layout: decode Info.plist: %w", err)
	}
	if info.CFBundleExecutable == "" {
		return fmt.Errorf("layout: Info.plist missing CFBundleExecutable")
	}

	contentsDir := filepath.Dir(infoPlistPath)
	execPath := filepath.Join(contentsDir, "MacOS", info.CFBundleExecutable)

	if err := chmodExecutable(execPath); err != nil {
		return fmt.Errorf("layout: mark bundle executable: %w", err)
	}
	return nil
}
