package format

// Media types derived from the output container.
const (
	TypeVideo = "video"
	TypeAudio = "audio"
	TypeImage = "image"
	TypeNone  = ""
)

// Containers accepted by the transcoding API, grouped by media type.
var (
	VideoContainers = []string{"mp4", "webm", "avi", "asf", "mpegts", "mov", "flv", "mkv", "3gp", "ogv"}
	AudioContainers = []string{"mp3", "ogg", "flac", "amr", "wav"}
	ImageContainers = []string{"jpg", "png", "gif"}
)

// Codecs accepted by the transcoding API. Tokens in a track segment are
// matched against these lists verbatim.
var (
	VideoCodecs = []string{
		"mpeg4", "xvid", "flv", "h263", "mjpeg", "mpeg1video", "mpeg2video",
		"qtrle", "svq3", "wmv1", "wmv2", "huffyuv", "rv20", "h264", "hevc",
		"vp8", "vp9", "theora", "dnxhd", "prores",
	}
	AudioCodecs = []string{
		"mp3", "mp2", "aac", "amr_nb", "ac3", "vorbis", "flac",
		"pcm_u8", "pcm_s16le", "pcm_alaw", "wmav2",
	}
)

// FrameRates and SampleRates are the only values the remote API accepts;
// anything else in a format string is ignored per the lenient-parsing
// policy.
var (
	FrameRates  = []string{"0", "15", "23.98", "25", "29.97", "30"}
	SampleRates = []string{"8000", "11025", "16000", "22000", "22050", "24000", "32000", "44000", "44100", "48000"}
	Channels    = []string{"mono", "stereo"}
	PixelFmts   = []string{"yuv420p", "yuv422p", "yuva420p"}
)

// Definition is a resolution shorthand that expands to a concrete
// resolution and an implied video bitrate.
type Definition struct {
	Resolution   string
	VideoBitrate string
}

// Definitions maps shorthand tokens like "720p" to their expansion.
// The implied bitrate only applies when no explicit bitrate token
// accompanies the shorthand.
var Definitions = map[string]Definition{
	"240p":  {Resolution: "0x240", VideoBitrate: "500k"},
	"360p":  {Resolution: "0x360", VideoBitrate: "800k"},
	"480p":  {Resolution: "0x480", VideoBitrate: "1000k"},
	"720p":  {Resolution: "1280x720", VideoBitrate: "2000k"},
	"1080p": {Resolution: "1920x1080", VideoBitrate: "4000k"},
	"2160p": {Resolution: "3840x2160", VideoBitrate: "8000k"},
}

// Track defaults. Every decoded spec starts from these so the result
// always reflects effective values, not just what was typed.
//
// Note: upstream config files disagree on the audio defaults (one swaps
// bitrate and sample rate). This table is the canonical one.
const (
	DefaultResolution   = "0x0"
	DefaultVideoBitrate = "1000k"
	DefaultFrameRate    = "0fps"
	DefaultAudioBitrate = "128k"
	DefaultSampleRate   = "44100hz"
	DefaultChannel      = "stereo"
)

// DefaultCodecs maps each container to its default video/audio codecs.
// Audio-only containers have an empty video codec.
var DefaultCodecs = map[string][2]string{
	"mp4":    {"h264", "aac"},
	"webm":   {"vp8", "vorbis"},
	"avi":    {"mpeg4", "mp3"},
	"asf":    {"wmv2", "wmav2"},
	"mpegts": {"h264", "aac"},
	"mov":    {"h264", "aac"},
	"flv":    {"flv", "mp3"},
	"mkv":    {"h264", "aac"},
	"3gp":    {"h263", "amr_nb"},
	"ogv":    {"theora", "vorbis"},

	"mp3":  {"", "mp3"},
	"ogg":  {"", "vorbis"},
	"flac": {"", "flac"},
	"amr":  {"", "amr_nb"},
	"wav":  {"", "pcm_s16le"},
}

// Codec-specific option support. An option given for a codec that does
// not support it is dropped, not rejected.
var (
	// QualityCodecs lists codecs accepting quality=1..5 in place of a
	// target bitrate.
	QualityCodecs = []string{"h264", "hevc", "vp8", "vp9"}

	VProfiles = map[string][]string{
		"h264":       {"baseline", "main", "high", "high10", "high422", "high444"},
		"hevc":       {"main", "main10"},
		"mpeg2video": {"simple", "main", "high"},
		"prores":     {"0", "1", "2", "3"},
	}

	Levels = map[string][]string{
		"h264": {"10", "11", "12", "13", "20", "21", "22", "30", "31", "32", "40", "41", "42", "50", "51", "52"},
		"hevc": {"30", "60", "63", "90", "93", "120", "123", "150", "153", "156", "180", "183", "186"},
	}

	// FragContainers lists containers supporting fragmented output.
	FragContainers = []string{"mp4", "mov"}
)

// BitrateCeiling rejects typo bitrates; values at or above this many
// kbit/s fall back to the container default.
const BitrateCeiling = 200000

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
