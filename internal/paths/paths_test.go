package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSubstitution(t *testing.T) {
	vars := map[string]string{
		"path":     "videos/promo",
		"filename": "intro",
		"key":      "mp4:720p",
		"ext":      "mp4",
	}

	resolved := Resolve("{path}/{filename}-{key}.{ext}", vars, Options{})
	assert.Equal(t, "_videos/promo/intro-mp4:720p.mp4", resolved)
}

func TestResolveUnknownPlaceholderEmpty(t *testing.T) {
	resolved := Resolve("out/{nope}/{filename}.{ext}", map[string]string{
		"filename": "clip",
		"ext":      "webm",
	}, Options{})

	// The empty segment collapses with its separator.
	assert.Equal(t, "_out/clip.webm", resolved)
}

func TestResolveEscapedPlaceholder(t *testing.T) {
	resolved := Resolve("{path}/{{literal}}.jpg", map[string]string{"path": "img"}, Options{})
	assert.Equal(t, "_img/{literal}.jpg", resolved)
}

func TestResolveSequenceSuffix(t *testing.T) {
	resolved := Resolve("thumbs/{filename}.jpg", map[string]string{"filename": "clip"}, Options{Sequence: true})
	assert.Equal(t, "_thumbs/clip-%02d.jpg", resolved)

	// An existing counter is left alone.
	resolved = Resolve("thumbs/clip-%05d.jpg", nil, Options{Sequence: true})
	assert.Equal(t, "_thumbs/clip-%05d.jpg", resolved)
}

func TestResolveFormatIndexSuffix(t *testing.T) {
	resolved := Resolve("out/clip.mp4", nil, Options{FormatIndex: 2})
	assert.Equal(t, "_out/clip-2.mp4", resolved)

	// Idempotent when the suffix is already there.
	resolved = Resolve("out/clip-2.mp4", nil, Options{FormatIndex: 2})
	assert.Equal(t, "_out/clip-2.mp4", resolved)
}

func TestPrivatizeIdempotent(t *testing.T) {
	assert.Equal(t, Privatize("_coconut/x"), Privatize(Privatize("coconut/x")))
	assert.Equal(t, "_coconut/x", Privatize("coconut/x"))
	assert.Equal(t, "_coconut/x", Privatize("_coconut/x"))
}
