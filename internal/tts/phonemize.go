package tts

import (
	"context"
	"os/exec"
	"strings"
	"time"
	"unicode"

	"github.com/mozillazg/go-pinyin"

	"github.com/iabetor/mytts/internal/logger"
)

// phonemizeTimeout 单次音素转换的最长耗时。
const phonemizeTimeout = 5 * time.Second

// Phonemize 生成文本的音素串用于展示。尽力而为：
// 中文走 go-pinyin 拼音标注，其它文本调用 espeak-ng 取 IPA。
// 任何失败都只返回空串，不影响合成流程。
func Phonemize(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if containsHan(text) {
		return pinyinPhonemes(text)
	}
	return espeakPhonemes(ctx, text)
}

// containsHan 判断文本是否含汉字。
func containsHan(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// pinyinPhonemes 将汉字转为带声调拼音，非汉字字符原样丢弃。
func pinyinPhonemes(text string) string {
	args := pinyin.NewArgs()
	args.Style = pinyin.Tone

	var parts []string
	for _, syllable := range pinyin.Pinyin(text, args) {
		parts = append(parts, syllable...)
	}
	return strings.Join(parts, " ")
}

// espeakPhonemes 调用 espeak-ng 输出 IPA 音素。
// 本机未安装 espeak-ng 时静默返回空串。
func espeakPhonemes(ctx context.Context, text string) string {
	ctx, cancel := context.WithTimeout(ctx, phonemizeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "espeak-ng", "-q", "--ipa", text)
	out, err := cmd.Output()
	if err != nil {
		logger.Debugf("[tts] espeak-ng 音素转换失败: %v", err)
		return ""
	}

	return strings.Join(strings.Fields(string(out)), " ")
}
