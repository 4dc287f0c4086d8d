// Package format implements the compact format-string grammar used to
// describe transcoding outputs, e.g. "mp4:720p_hevc_25fps:mp3_96k:quality=2,frag".
//
// Parsing is deliberately lenient: unrecognized tokens and out-of-range
// values degrade to container defaults instead of failing, since format
// strings are user-authored shorthand.
package format

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	resolutionRe = regexp.MustCompile(`^(\d+)x(\d+)$`)
	bitrateRe    = regexp.MustCompile(`^(\d{2,6})k$`)
	frameRateRe  = regexp.MustCompile(`^(\d+(?:\.\d+)?)fps$`)
	sampleRateRe = regexp.MustCompile(`^(\d+)hz$`)
	maxRateRe    = regexp.MustCompile(`^\d{1,6}k$`)
	qualityRe    = regexp.MustCompile(`^[1-5]$`)
)

// disabledTrack is the literal segment that turns a track off.
const disabledTrack = "x"

// ContainerType returns the media type for a container, or TypeNone
// when the container is not recognized.
func ContainerType(container string) string {
	switch {
	case contains(VideoContainers, container):
		return TypeVideo
	case contains(AudioContainers, container):
		return TypeAudio
	case contains(ImageContainers, container):
		return TypeImage
	default:
		return TypeNone
	}
}

// Extension returns the file extension for a container.
func Extension(container string) string {
	if container == "mpegts" {
		return "ts"
	}
	return container
}

// ParseResolution splits a "WxH" resolution into dimensions. Returns
// zeros when the string does not match.
func ParseResolution(resolution string) (width, height int) {
	m := resolutionRe.FindStringSubmatch(resolution)
	if m == nil {
		return 0, 0
	}
	width, _ = strconv.Atoi(m[1])
	height, _ = strconv.Atoi(m[2])
	return width, height
}

// Decode parses a format string into a Spec. Container defaults are
// merged in first so the result always reflects effective values.
func Decode(formatString string) Spec {
	segments := strings.Split(strings.TrimSpace(formatString), ":")
	seg := func(i int) string {
		if i < len(segments) {
			return strings.TrimSpace(segments[i])
		}
		return ""
	}

	spec := Spec{Container: strings.ToLower(seg(0))}

	switch ContainerType(spec.Container) {
	case TypeVideo:
		applyVideoDefaults(&spec)
		applyAudioDefaults(&spec)
		decodeVideoSegment(&spec, seg(1))
		decodeAudioSegment(&spec, seg(2))
		decodeOptions(&spec, seg(3))

	case TypeAudio:
		applyAudioDefaults(&spec)
		audioSeg, optIdx := seg(1), 2
		if audioSeg == "" && seg(2) != "" {
			audioSeg, optIdx = seg(2), 3
		}
		decodeAudioSegment(&spec, audioSeg)
		decodeOptions(&spec, seg(optIdx))

	case TypeImage:
		spec.Resolution = DefaultResolution
		decodeImageSegment(&spec, seg(1))
	}

	return spec
}

func applyVideoDefaults(spec *Spec) {
	spec.VideoCodec = DefaultCodecs[spec.Container][0]
	spec.Resolution = DefaultResolution
	spec.VideoBitrate = DefaultVideoBitrate
	spec.FrameRate = DefaultFrameRate
}

func applyAudioDefaults(spec *Spec) {
	spec.AudioCodec = DefaultCodecs[spec.Container][1]
	spec.AudioBitrate = DefaultAudioBitrate
	spec.SampleRate = DefaultSampleRate
	spec.AudioChannel = DefaultChannel
}

func decodeVideoSegment(spec *Spec, segment string) {
	if segment == "" {
		return
	}
	if segment == disabledTrack {
		spec.VideoDisabled = true
		spec.VideoCodec = ""
		spec.Resolution = ""
		spec.VideoBitrate = ""
		spec.FrameRate = ""
		return
	}

	explicitBitrate := false
	var definitions []Definition

	for _, token := range strings.Split(segment, "_") {
		switch {
		case isDefinition(token):
			definitions = append(definitions, Definitions[token])

		case resolutionRe.MatchString(token):
			spec.Resolution = token

		case contains(VideoCodecs, token):
			spec.VideoCodec = token

		case acceptBitrate(token):
			spec.VideoBitrate = token
			explicitBitrate = true

		case acceptFrameRate(token):
			spec.FrameRate = token
		}
	}

	// Definitions always set the resolution they name, but their implied
	// bitrate never overrides an explicitly given one.
	for _, def := range definitions {
		spec.Resolution = def.Resolution
		if !explicitBitrate {
			spec.VideoBitrate = def.VideoBitrate
		}
	}
}

func decodeAudioSegment(spec *Spec, segment string) {
	if segment == "" {
		return
	}
	if segment == disabledTrack {
		spec.AudioDisabled = true
		spec.AudioCodec = ""
		spec.AudioBitrate = ""
		spec.SampleRate = ""
		spec.AudioChannel = ""
		return
	}

	for _, token := range splitAudioTokens(segment) {
		switch {
		case contains(AudioCodecs, token):
			spec.AudioCodec = token

		case acceptBitrate(token):
			spec.AudioBitrate = token

		case acceptSampleRate(token):
			spec.SampleRate = token

		case contains(Channels, token):
			spec.AudioChannel = token
		}
	}
}

func decodeImageSegment(spec *Spec, segment string) {
	for _, token := range strings.Split(segment, "_") {
		switch {
		case isDefinition(token):
			spec.Resolution = Definitions[token].Resolution
		case resolutionRe.MatchString(token):
			spec.Resolution = token
		}
	}
}

func decodeOptions(spec *Spec, segment string) {
	if segment == "" {
		return
	}

	qualityOK := contains(QualityCodecs, spec.VideoCodec)
	var maxrate string

	for _, option := range strings.Split(segment, ",") {
		name, value, _ := strings.Cut(strings.TrimSpace(option), "=")
		switch name {
		case "2pass":
			spec.TwoPass = true

		case "frag":
			if contains(FragContainers, spec.Container) {
				spec.Frag = true
			}

		case "pix_fmt":
			if contains(PixelFmts, value) {
				spec.PixFmt = value
			}

		case "quality":
			if qualityOK && qualityRe.MatchString(value) {
				spec.Quality = value
				// A quality target supersedes any bitrate.
				spec.VideoBitrate = ""
			}

		case "vprofile":
			if contains(VProfiles[spec.VideoCodec], value) {
				spec.VProfile = value
			}

		case "level":
			if contains(Levels[spec.VideoCodec], value) {
				spec.Level = value
			}

		case "maxrate":
			maxrate = value
		}
	}

	// maxrate only makes sense together with a quality target.
	if maxrate != "" && spec.Quality != "" && maxRateRe.MatchString(maxrate) {
		spec.MaxRate = maxrate
	}
}

// splitAudioTokens splits an audio segment on "_" without breaking
// codec names that themselves contain underscores (amr_nb, pcm_s16le).
func splitAudioTokens(segment string) []string {
	masked := segment
	for _, codec := range AudioCodecs {
		if strings.Contains(codec, "_") {
			masked = strings.ReplaceAll(masked, codec, strings.ReplaceAll(codec, "_", "\x00"))
		}
	}

	tokens := strings.Split(masked, "_")
	for i, token := range tokens {
		tokens[i] = strings.ReplaceAll(token, "\x00", "_")
	}
	return tokens
}

func isDefinition(token string) bool {
	_, ok := Definitions[token]
	return ok
}

func acceptBitrate(token string) bool {
	m := bitrateRe.FindStringSubmatch(token)
	if m == nil {
		return false
	}
	value, _ := strconv.Atoi(m[1])
	return value < BitrateCeiling
}

func acceptFrameRate(token string) bool {
	m := frameRateRe.FindStringSubmatch(token)
	return m != nil && contains(FrameRates, m[1])
}

func acceptSampleRate(token string) bool {
	m := sampleRateRe.FindStringSubmatch(token)
	return m != nil && contains(SampleRates, m[1])
}

// Encode produces the canonical minimal string for a spec: fields equal
// to container defaults are omitted and trailing empty segments are
// trimmed. Encode(Decode(s)) is not necessarily s (aliases normalize),
// but decoding the result yields the same spec.
func Encode(spec Spec) string {
	segments := []string{spec.Container}

	switch spec.Type() {
	case TypeVideo:
		segments = append(segments,
			encodeVideoSegment(spec),
			encodeAudioSegment(spec),
			encodeOptions(spec),
		)

	case TypeAudio:
		segments = append(segments,
			encodeAudioSegment(spec),
			encodeOptions(spec),
		)

	case TypeImage:
		if spec.Resolution != "" && spec.Resolution != DefaultResolution {
			segments = append(segments, spec.Resolution)
		}
	}

	for len(segments) > 1 && segments[len(segments)-1] == "" {
		segments = segments[:len(segments)-1]
	}

	return strings.Join(segments, ":")
}

func encodeVideoSegment(spec Spec) string {
	if spec.VideoDisabled {
		return disabledTrack
	}

	var tokens []string
	if spec.VideoCodec != "" && spec.VideoCodec != DefaultCodecs[spec.Container][0] {
		tokens = append(tokens, spec.VideoCodec)
	}
	if spec.Resolution != "" && spec.Resolution != DefaultResolution {
		tokens = append(tokens, spec.Resolution)
	}
	if spec.VideoBitrate != "" && spec.VideoBitrate != DefaultVideoBitrate {
		tokens = append(tokens, spec.VideoBitrate)
	}
	if spec.FrameRate != "" && spec.FrameRate != DefaultFrameRate {
		tokens = append(tokens, spec.FrameRate)
	}
	return strings.Join(tokens, "_")
}

func encodeAudioSegment(spec Spec) string {
	if spec.AudioDisabled {
		return disabledTrack
	}

	var tokens []string
	if spec.AudioCodec != "" && spec.AudioCodec != DefaultCodecs[spec.Container][1] {
		tokens = append(tokens, spec.AudioCodec)
	}
	if spec.AudioBitrate != "" && spec.AudioBitrate != DefaultAudioBitrate {
		tokens = append(tokens, spec.AudioBitrate)
	}
	if spec.SampleRate != "" && spec.SampleRate != DefaultSampleRate {
		tokens = append(tokens, spec.SampleRate)
	}
	if spec.AudioChannel != "" && spec.AudioChannel != DefaultChannel {
		tokens = append(tokens, spec.AudioChannel)
	}
	return strings.Join(tokens, "_")
}

func encodeOptions(spec Spec) string {
	var options []string
	if spec.PixFmt != "" {
		options = append(options, "pix_fmt="+spec.PixFmt)
	}
	if spec.TwoPass {
		options = append(options, "2pass")
	}
	if spec.Quality != "" {
		options = append(options, "quality="+spec.Quality)
	}
	if spec.VProfile != "" {
		options = append(options, "vprofile="+spec.VProfile)
	}
	if spec.Level != "" {
		options = append(options, "level="+spec.Level)
	}
	if spec.MaxRate != "" {
		options = append(options, "maxrate="+spec.MaxRate)
	}
	if spec.Frag {
		options = append(options, "frag")
	}
	return strings.Join(options, ",")
}
