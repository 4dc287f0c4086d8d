package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainerType(t *testing.T) {
	assert.Equal(t, TypeVideo, ContainerType("mp4"))
	assert.Equal(t, TypeVideo, ContainerType("webm"))
	assert.Equal(t, TypeAudio, ContainerType("mp3"))
	assert.Equal(t, TypeImage, ContainerType("jpg"))
	assert.Equal(t, TypeNone, ContainerType("docx"))
}

func TestDecodeDefaults(t *testing.T) {
	spec := Decode("mp4")

	assert.Equal(t, Spec{
		Container:    "mp4",
		VideoCodec:   "h264",
		Resolution:   "0x0",
		VideoBitrate: "1000k",
		FrameRate:    "0fps",
		AudioCodec:   "aac",
		AudioBitrate: "128k",
		SampleRate:   "44100hz",
		AudioChannel: "stereo",
	}, spec)

	// Encoding the full default spec collapses back to the bare container.
	assert.Equal(t, "mp4", Encode(spec))
}

func TestDecodeVideoSegment(t *testing.T) {
	spec := Decode("mp4:hevc_1920x1080_4000k_25fps")

	assert.Equal(t, "hevc", spec.VideoCodec)
	assert.Equal(t, "1920x1080", spec.Resolution)
	assert.Equal(t, "4000k", spec.VideoBitrate)
	assert.Equal(t, "25fps", spec.FrameRate)
	// Audio track keeps container defaults.
	assert.Equal(t, "aac", spec.AudioCodec)
	assert.Equal(t, "128k", spec.AudioBitrate)
}

func TestDecodeDefinitionPrecedence(t *testing.T) {
	// The 720p definition sets the resolution, but the explicit bitrate
	// token wins over the definition-implied 2000k.
	spec := Decode("mp4:720p_500k")
	assert.Equal(t, "1280x720", spec.Resolution)
	assert.Equal(t, "500k", spec.VideoBitrate)

	// Token order does not matter.
	spec = Decode("mp4:500k_720p")
	assert.Equal(t, "1280x720", spec.Resolution)
	assert.Equal(t, "500k", spec.VideoBitrate)

	// Without an explicit bitrate the definition's bitrate applies.
	spec = Decode("mp4:720p")
	assert.Equal(t, "2000k", spec.VideoBitrate)
}

func TestDecodeBitrateCeiling(t *testing.T) {
	spec := Decode("mp4:200000k")
	assert.Equal(t, "1000k", spec.VideoBitrate)

	spec = Decode("mp4:199999k")
	assert.Equal(t, "199999k", spec.VideoBitrate)
}

func TestDecodeUnknownTokensIgnored(t *testing.T) {
	spec := Decode("mp4:frobnicate_999fps_12xy")
	assert.Equal(t, Decode("mp4"), spec)
}

func TestDecodeTrackDisabling(t *testing.T) {
	spec := Decode("mp4:x")
	assert.True(t, spec.VideoDisabled)
	assert.Empty(t, spec.VideoCodec)
	assert.Empty(t, spec.Resolution)
	assert.Empty(t, spec.VideoBitrate)
	assert.Empty(t, spec.FrameRate)
	assert.Equal(t, "aac", spec.AudioCodec)

	spec = Decode("mp4::x")
	assert.True(t, spec.AudioDisabled)
	assert.Empty(t, spec.AudioCodec)
	assert.Empty(t, spec.AudioBitrate)
	assert.Empty(t, spec.SampleRate)
	assert.Empty(t, spec.AudioChannel)
	assert.Equal(t, "h264", spec.VideoCodec)
}

func TestDecodeAudioCodecWithUnderscore(t *testing.T) {
	// amr_nb must not be split into "amr" and "nb".
	spec := Decode("mp4::amr_nb_96k")
	assert.Equal(t, "amr_nb", spec.AudioCodec)
	assert.Equal(t, "96k", spec.AudioBitrate)

	spec = Decode("wav:pcm_s16le_mono")
	assert.Equal(t, "pcm_s16le", spec.AudioCodec)
	assert.Equal(t, "mono", spec.AudioChannel)
}

func TestDecodeAudioContainer(t *testing.T) {
	spec := Decode("mp3:96k_22050hz_mono")
	assert.Equal(t, "mp3", spec.AudioCodec)
	assert.Equal(t, "96k", spec.AudioBitrate)
	assert.Equal(t, "22050hz", spec.SampleRate)
	assert.Equal(t, "mono", spec.AudioChannel)
	assert.Empty(t, spec.VideoCodec)

	// An empty first segment shifts the audio spec to the second one.
	assert.Equal(t, Decode("mp3:96k"), Decode("mp3::96k"))
}

func TestDecodeImageContainer(t *testing.T) {
	spec := Decode("jpg:720p")
	assert.Equal(t, "1280x720", spec.Resolution)
	assert.Empty(t, spec.VideoCodec)
	assert.Empty(t, spec.AudioCodec)

	spec = Decode("png:640x360")
	assert.Equal(t, "640x360", spec.Resolution)
}

func TestDecodeQualitySupersedesBitrate(t *testing.T) {
	spec := Decode("mp4:8000k::quality=1")
	assert.Empty(t, spec.VideoBitrate)
	assert.Equal(t, "1", spec.Quality)
}

func TestDecodeMaxRateGating(t *testing.T) {
	spec := Decode("mp4:::quality=5,maxrate=145000k")
	assert.Equal(t, "145000k", spec.MaxRate)

	// avi's default codec (mpeg4) has no quality support, so quality is
	// dropped and maxrate with it.
	spec = Decode("avi:::quality=1,maxrate=1000k")
	assert.Empty(t, spec.Quality)
	assert.Empty(t, spec.MaxRate)

	// maxrate without quality is dropped too.
	spec = Decode("mp4:::maxrate=4000k")
	assert.Empty(t, spec.MaxRate)
}

func TestDecodeOptions(t *testing.T) {
	spec := Decode("mp4:::pix_fmt=yuv420p,2pass,vprofile=high,level=41,frag")
	assert.Equal(t, "yuv420p", spec.PixFmt)
	assert.True(t, spec.TwoPass)
	assert.Equal(t, "high", spec.VProfile)
	assert.Equal(t, "41", spec.Level)
	assert.True(t, spec.Frag)

	// frag is container-gated, vprofile codec-gated.
	spec = Decode("webm:::vprofile=high,frag")
	assert.Empty(t, spec.VProfile)
	assert.False(t, spec.Frag)
}

func TestEncodeOmitsDefaults(t *testing.T) {
	assert.Equal(t, "mp4", Encode(Decode("mp4")))
	assert.Equal(t, "mp3", Encode(Decode("mp3:128k_44100hz_stereo")))
	assert.Equal(t, "mp4:x", Encode(Decode("mp4:x")))
	assert.Equal(t, "mp4::x", Encode(Decode("mp4::x")))
	assert.Equal(t, "jpg:1280x720", Encode(Decode("jpg:720p")))
}

func TestRoundTripNormalization(t *testing.T) {
	formats := []string{
		"mp4",
		"mp4:720p",
		"mp4:720p_hevc_25fps:mp3_96k:quality=2,frag",
		"mp4:hevc_1920x1080::2pass,pix_fmt=yuv420p",
		"mp4:x:mp3_96k",
		"mp4:1080p:x",
		"webm:vp9_480p",
		"avi:mpeg4_700k:mp3_64k_22050hz_mono",
		"mp3:64k_mono",
		"ogg::22050hz",
		"jpg:240p",
		"gif:640x360",
		"mp4:8000k::quality=3,maxrate=16000k",
		"3gp:h263_240p:amr_nb_32k",
	}

	for _, s := range formats {
		decoded := Decode(s)
		assert.Equal(t, decoded, Decode(Encode(decoded)), "round trip for %q", s)
	}
}

func TestParseResolution(t *testing.T) {
	w, h := ParseResolution("1280x720")
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)

	w, h = ParseResolution("0x720")
	assert.Equal(t, 0, w)
	assert.Equal(t, 720, h)

	w, h = ParseResolution("720p")
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "mp4", Extension("mp4"))
	assert.Equal(t, "ts", Extension("mpegts"))
}
