package helpers

import (
	"os"
)

func CheckFileExists(filePath string) bool {
	if info, err := os.Stat(filePath); err == nil {
		return !info.IsDir()
	}
	return false
}
