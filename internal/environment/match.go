package environment

import (
	"path"
	"strings"
)

// MatchGlob reports whether the slash-separated rel path matches pattern.
// A "**" segment matches any number of segments, including none; other
// segments follow path.Match. A pattern without a slash is matched against
// every segment, so "testdata" excludes any testdata directory.
func MatchGlob(rel, pattern string) bool {
	rel = strings.Trim(strings.ReplaceAll(rel, "\\", "/"), "/")
	pattern = strings.Trim(pattern, "/")
	if pattern == "" {
		return false
	}
	if !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern + "/**"
	}
	return matchParts(strings.Split(rel, "/"), strings.Split(pattern, "/"))
}

func matchParts(segs, pattern []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}

	p, rest := pattern[0], pattern[1:]
	if p == "**" {
		if len(rest) == 0 {
			return true
		}
		for i := 0; i <= len(segs); i++ {
			if matchParts(segs[i:], rest) {
				return true
			}
		}
		return false
	}

	if len(segs) == 0 {
		return false
	}
	if ok, err := path.Match(p, segs[0]); err != nil || !ok {
		return false
	}
	return matchParts(segs[1:], rest)
}
