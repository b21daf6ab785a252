// Package archive maps archive formats to their compile and extract codecs.
package archive

import (
	"fmt"
	"strings"
)

// Format is a compile target. The set is closed: adding a format means
// teaching both ParseFormat and the compile dispatch about it.
type Format int

const (
	Zip Format = iota
	SevenZip
	Tar
	TarGz
)

// Formats lists all compile targets in menu order.
var Formats = []Format{Zip, SevenZip, Tar, TarGz}

// ParseFormat resolves a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zip":
		return Zip, nil
	case "7z":
		return SevenZip, nil
	case "tar":
		return Tar, nil
	case "tar.gz", "tgz":
		return TarGz, nil
	}
	return 0, fmt.Errorf("archive: unsupported format %q", s)
}

func (f Format) String() string {
	switch f {
	case Zip:
		return "zip"
	case SevenZip:
		return "7z"
	case Tar:
		return "tar"
	case TarGz:
		return "tar.gz"
	}
	return "unknown"
}

// Ext returns the filename extension for the format, including the dot.
func (f Format) Ext() string {
	return "." + f.String()
}

// Describe returns a short user-facing description of the format.
func (f Format) Describe() string {
	switch f {
	case Zip:
		return "ZIP Archive (Universal)"
	case SevenZip:
		return "7-Zip Archive (High Compression)"
	case Tar:
		return "TAR Archive (Unix)"
	case TarGz:
		return "GZipped TAR Archive"
	}
	return ""
}

var extractableExts = []string{".zip", ".7z", ".tar", ".tar.gz", ".tgz", ".apk"}

// archiveExts additionally covers containers we can recognize but not open.
var archiveExts = append([]string{".rar", ".jar", ".war", ".ear"}, extractableExts...)

// CanExtract reports whether the file name ends in an extension the
// extract dispatch supports.
func CanExtract(name string) bool {
	return hasAnySuffix(name, extractableExts)
}

// IsArchive reports whether the file name looks like any known archive
// container, including ones we only recognize for display purposes.
func IsArchive(name string) bool {
	return hasAnySuffix(name, archiveExts)
}

func hasAnySuffix(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
