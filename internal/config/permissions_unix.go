//go:build unix

package config

import (
	"fmt"
	"os"
)

// checkFilePermissions warns when a config file holding secrets is readable
// by group or others.
func checkFilePermissions(path string, secrets []string) string {
	if len(secrets) == 0 {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}

	mode := info.Mode().Perm()
	if mode&0077 == 0 {
		return ""
	}
	return permissionWarning(path,
		fmt.Sprintf("has insecure permissions (%04o)", mode),
		secrets,
		"Run: chmod 600 "+path,
	)
}
