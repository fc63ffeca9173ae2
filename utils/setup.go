// SPDX-License-Identifier: Apache-2.0
package utils

import (
	"os"
	"path/filepath"
)

func SetHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	return homeDir
}

// DefaultStoreDir is the directory sessions are persisted in by default.
func DefaultStoreDir() string {
	return filepath.Join(SetHomeDir(), ".icwc", "session")
}
