// Package wheelname extracts fields from the wheel filename grammar:
// name-version-pytag-abitag-platformtag.whl.
package wheelname

import (
	"fmt"
	"strings"
)

// IsWheel reports whether filename has the ".whl" suffix that marks a
// binary pre-built distribution, as opposed to a source tarball.
func IsWheel(filename string) bool {
	return strings.HasSuffix(filename, ".whl")
}

// Version extracts the version field (index 1 after splitting on "-") from
// a wheel filename, e.g. "pkg-1.2.3-py2-none-any.whl" yields "1.2.3".
//
// The same index-1 rule is used for the simple-index scraping locator's
// link-to-candidate conversion (spec §4.4.1), so both callers share this
// helper.
func Version(filename string) (string, error) {
	base := filename
	if strings.HasSuffix(base, ".whl") {
		base = strings.TrimSuffix(base, ".whl")
	} else if i := strings.LastIndex(base, "."); i > 0 {
		// Source archives (tar.gz, zip, tar.bz2 ...): strip the
		// recognized archive suffix before splitting.
		base = stripArchiveSuffix(base)
	}
	parts := strings.Split(base, "-")
	if len(parts) < 2 {
		return "", fmt.Errorf("wheelname: cannot extract version from %q", filename)
	}
	return parts[1], nil
}

var archiveSuffixes = []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tgz", ".zip"}

func stripArchiveSuffix(name string) string {
	for _, suf := range archiveSuffixes {
		if strings.HasSuffix(name, suf) {
			return strings.TrimSuffix(name, suf)
		}
	}
	return name
}
