package tts

import "strings"

// voiceFiles 是 Kokoro 多语言模型自带的语音列表。
// 顺序即模型内的 speaker id 顺序，不能调整。
var voiceFiles = []string{
	// 美式女声
	"af_alloy.pt", "af_aoede.pt", "af_bella.pt", "af_jessica.pt",
	"af_kore.pt", "af_nicole.pt", "af_nova.pt", "af_river.pt",
	"af_sarah.pt", "af_sky.pt",
	// 美式男声
	"am_adam.pt", "am_echo.pt", "am_eric.pt", "am_fenrir.pt",
	"am_liam.pt", "am_michael.pt", "am_onyx.pt", "am_puck.pt",
	"am_santa.pt",
	// 英式女声
	"bf_alice.pt", "bf_emma.pt", "bf_isabella.pt", "bf_lily.pt",
	// 英式男声
	"bm_daniel.pt", "bm_fable.pt", "bm_george.pt", "bm_lewis.pt",
	// 其它语言
	"el_dora.pt", "em_alex.pt", "em_santa.pt",
	"ff_siwis.pt",
	"hf_alpha.pt", "hf_beta.pt",
	"hm_omega.pt", "hm_psi.pt",
	"jf_sara.pt", "jm_nicola.pt",
	"jf_alpha.pt", "jf_gongtsuene.pt", "jf_nezumi.pt", "jf_tebukuro.pt",
	"jm_kumo.pt",
	"pf_dora.pt", "pm_alex.pt", "pm_santa.pt",
	"zf_xiaobei.pt", "zf_xiaoni.pt", "zf_xiaoqiao.pt", "zf_xiaoyi.pt",
}

// speakerIDs 语音名 -> speaker id 映射，按 voiceFiles 顺序构建。
var speakerIDs = func() map[string]int {
	m := make(map[string]int, len(voiceFiles))
	for i, f := range voiceFiles {
		m[strings.TrimSuffix(f, ".pt")] = i
	}
	return m
}()

// VoiceNames 返回全部语音名称（不含 .pt 扩展名），按 speaker id 顺序。
func VoiceNames() []string {
	names := make([]string, len(voiceFiles))
	for i, f := range voiceFiles {
		names[i] = strings.TrimSuffix(f, ".pt")
	}
	return names
}

// SpeakerID 返回语音名对应的 speaker id。未知语音返回 false。
func SpeakerID(name string) (int, bool) {
	id, ok := speakerIDs[strings.TrimSuffix(name, ".pt")]
	return id, ok
}
