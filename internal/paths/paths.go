// Package paths renders output file path templates.
package paths

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var (
	placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}|\{(\w+)\}`)
	separatorRe   = regexp.MustCompile(`/{2,}`)
	sequenceRe    = regexp.MustCompile(`%0?\d*d`)
)

// Options controls path post-processing.
type Options struct {
	// Sequence marks outputs producing a numbered image sequence; the
	// resolved path gets a printf-style counter if it has none.
	Sequence bool

	// FormatIndex disambiguates outputs sharing one resolved path; when
	// set, a "-{index}" suffix is inserted before the extension.
	FormatIndex int
}

// Resolve renders a path template. {name} placeholders are replaced
// from vars ({{name}} escapes to a literal {name}), unresolved
// placeholders become empty. The result is post-processed per opts,
// privatized and cleaned of duplicate separators.
func Resolve(template string, vars map[string]string, opts Options) string {
	resolved := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		if strings.HasPrefix(m, "{{") {
			return m[1 : len(m)-1]
		}
		return vars[m[1:len(m)-1]]
	})

	if opts.Sequence && !sequenceRe.MatchString(resolved) {
		resolved = insertBeforeExt(resolved, "-%02d")
	}

	if opts.FormatIndex > 0 {
		suffix := fmt.Sprintf("-%d", opts.FormatIndex)
		if !strings.HasSuffix(stripExt(resolved), suffix) {
			resolved = insertBeforeExt(resolved, suffix)
		}
	}

	return separatorRe.ReplaceAllString(Privatize(resolved), "/")
}

// Privatize prefixes the leading path segment with "_" so the CMS does
// not index transcoded derivatives as primary assets. Already-private
// paths pass through unchanged.
func Privatize(p string) string {
	segments := strings.Split(p, "/")
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		if !strings.HasPrefix(segment, "_") {
			segments[i] = "_" + segment
		}
		break
	}
	return strings.Join(segments, "/")
}

func insertBeforeExt(p, suffix string) string {
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext) + suffix + ext
}

func stripExt(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}
