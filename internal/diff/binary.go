// internal/diff/binary.go
package diff

import (
	"bytes"
	"path/filepath"
	"strings"
)

const binarySniffLen = 8000

// binaryExtensions lists extensions that are never worth a text diff.
var binaryExtensions = map[string]bool{
	".zip": true, ".gz": true, ".zst": true, ".xz": true, ".bz2": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mkv": true,
	".pdf": true, ".docx": true, ".xlsx": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".a": true, ".o": true, ".wasm": true,
}

// IsBinary sniffs content for an embedded NUL byte, the same heuristic git
// uses, limited to the leading bytes.
func IsBinary(content []byte) bool {
	n := len(content)
	if n > binarySniffLen {
		n = binarySniffLen
	}
	return bytes.IndexByte(content[:n], 0) >= 0
}

// IsBinaryPath reports whether a path's extension marks it as binary without
// looking at content.
func IsBinaryPath(path string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(path))]
}
