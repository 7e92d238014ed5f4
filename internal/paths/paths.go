// Package paths converts between absolute project paths and the directory
// names the conversation log store uses for them.
//
// Two conventions are understood:
//
//	C:\repos\proj  <->  C--repos-proj   (drive letter)
//	/home/u/proj   <->  -home-u-proj    (POSIX)
//
// The encoding is lossy for path components that themselves contain '-':
// those decode with an extra separator. Round trips hold for every path
// whose components are free of '-'.
package paths

import (
	"regexp"
	"strings"
)

var driveKey = regexp.MustCompile(`^([A-Za-z])--(.*)$`)

// Encode returns the log store directory name for an absolute path.
// Drive-letter paths accept either separator.
func Encode(p string) string {
	if isDrivePath(p) {
		rest := strings.TrimLeft(p[2:], `\/`)
		rest = strings.NewReplacer(`\`, "-", "/", "-").Replace(rest)
		return p[:1] + "--" + rest
	}
	return strings.ReplaceAll(p, "/", "-")
}

// Decode reverses Encode. ok is false when key matches neither convention,
// in which case key is returned unchanged.
func Decode(key string) (p string, ok bool) {
	if m := driveKey.FindStringSubmatch(key); m != nil {
		return m[1] + `:\` + strings.ReplaceAll(m[2], "-", `\`), true
	}
	if strings.HasPrefix(key, "-") {
		return strings.ReplaceAll(key, "-", "/"), true
	}
	return key, false
}

func isDrivePath(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
		return false
	}
	return len(p) == 2 || p[2] == '\\' || p[2] == '/'
}
