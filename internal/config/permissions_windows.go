//go:build windows

package config

import (
	"os"
	"os/exec"
	"strings"
)

// groupACLs are icacls principals that grant access beyond the owner.
var groupACLs = []string{
	"everyone",
	"authenticated users",
	"builtin\\users",
	"users",
}

// checkFilePermissions warns when a config file holding secrets may be
// readable by other users.
func checkFilePermissions(path string, secrets []string) string {
	if len(secrets) == 0 {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}

	output, err := exec.Command("icacls", path).Output()
	if err != nil {
		return ""
	}
	acl := strings.ToLower(string(output))

	for _, principal := range groupACLs {
		if strings.Contains(acl, principal) {
			return permissionWarning(path,
				"may have insecure permissions ("+principal+" has access)",
				secrets,
				"Run in PowerShell: icacls \""+path+"\" /inheritance:r /grant:r \"%USERNAME%:F\"",
			)
		}
	}
	return ""
}
