package prereq

import (
	"fmt"
	"os"
	"strings"
)

// RequiredFile is a local file a command reads before provisioning starts.
type RequiredFile struct {
	Path string

	// Purpose describes what the file provides, for the error message.
	Purpose string
}

// statFile is swapped in tests.
var statFile = os.Stat

// CheckFiles verifies every required file exists and is a regular file.
// All files are checked before reporting.
func CheckFiles(files []RequiredFile) error {
	var missing []string
	for _, f := range files {
		info, err := statFile(f.Path)
		if err != nil || info.IsDir() {
			missing = append(missing, fmt.Sprintf("%s (%s)", f.Path, f.Purpose))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required files: %s", strings.Join(missing, ", "))
}
