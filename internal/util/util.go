package util

import (
	"errors"
	"io/fs"
	"os"
	"strings"
)

func DirExists(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return info.IsDir()
}

var sampleNameReplacer = strings.NewReplacer(
	"#", "", "*", "_", ":", "_", ";", "_", " ", "_",
	"|", "_", "\"", "_", "'", "_", "=", "_", "-", "_",
	"(", "", ")", "", "/", "", "\\", "", "[", "", "]", "", ",", "",
)

// CleanSampleName strips characters from genome/sample names that break
// downstream tools (aligners treat '|', ':' and similar as structure).
func CleanSampleName(name string) string {
	return sampleNameReplacer.Replace(name)
}
