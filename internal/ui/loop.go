package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iabetor/mytts/internal/app"
	"github.com/iabetor/mytts/internal/logger"
)

// Loop 从输入流读取命令并驱动 App。
type Loop struct {
	app     *app.App
	console *Console
	voices  []string

	voice string
	speed float64
}

// NewLoop 创建命令循环。voices 用于 voices 命令展示和 voice 命令校验，
// 为空时不做校验（云端引擎）。
func NewLoop(a *app.App, console *Console, voices []string, defaultVoice string, defaultSpeed float64) *Loop {
	return &Loop{
		app:     a,
		console: console,
		voices:  voices,
		voice:   defaultVoice,
		speed:   defaultSpeed,
	}
}

// Run 读取命令直到输入结束或 ctx 取消。
func (l *Loop) Run(ctx context.Context, in io.Reader) {
	fmt.Println("输入 help 查看可用命令")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if quit := l.dispatch(ctx, scanner.Text()); quit {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Errorf("[ui] 读取输入失败: %v", err)
	}
}

// dispatch 执行一行命令，返回 true 表示退出。
func (l *Loop) dispatch(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "help":
		l.printHelp()
	case "say":
		if arg == "" {
			fmt.Println("用法: say <文本>")
			return false
		}
		l.app.Synthesize(arg, l.voice, l.speed)
	case "voice":
		l.setVoice(arg)
	case "voices":
		for _, v := range l.voices {
			fmt.Println("  " + v)
		}
	case "speed":
		l.setSpeed(arg)
	case "list":
		l.printRecords()
	case "play":
		if path := l.combinedPath(arg); path != "" {
			l.app.Play(ctx, path)
		}
	case "export":
		l.export(arg)
	case "clear":
		l.app.ClearResults()
	case "cleantemp":
		l.app.ClearTempFiles()
	case "quit", "exit":
		return true
	default:
		fmt.Printf("未知命令: %s\n", cmd)
	}
	return false
}

func (l *Loop) printHelp() {
	fmt.Print(`可用命令:
  say <文本>          合成语音
  voice <名称>        切换语音
  voices              列出可用语音
  speed <倍速>        设置语速 (0.1-2.0)
  list                列出生成历史
  play <序号>         播放指定历史记录
  export <序号> <路径> 导出音频文件
  clear               清空生成历史
  cleantemp           删除临时 chunk 文件
  quit                退出
`)
}

func (l *Loop) setVoice(name string) {
	if name == "" {
		fmt.Printf("当前语音: %s\n", l.voice)
		return
	}
	if len(l.voices) > 0 {
		found := false
		for _, v := range l.voices {
			if v == name {
				found = true
				break
			}
		}
		if !found {
			fmt.Printf("未知语音: %s（voices 命令查看可用语音）\n", name)
			return
		}
	}
	l.voice = name
	fmt.Printf("语音已切换: %s\n", name)
}

func (l *Loop) setSpeed(arg string) {
	if arg == "" {
		fmt.Printf("当前语速: %.2f\n", l.speed)
		return
	}
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil || v < 0.1 || v > 2.0 {
		fmt.Println("语速须在 0.1 到 2.0 之间")
		return
	}
	l.speed = v
	fmt.Printf("语速已设置: %.2f\n", v)
}

func (l *Loop) printRecords() {
	records := l.console.Records()
	if len(records) == 0 {
		fmt.Println("暂无生成历史")
		return
	}
	for i, r := range records {
		fmt.Printf("  [%d] ts=%.0f 分段=%d combined=%s\n", i, r.Timestamp, len(r.Chunks), r.Combined)
	}
}

// combinedPath 解析序号参数为 combined 文件路径，失败时打印提示。
func (l *Loop) combinedPath(arg string) string {
	records := l.console.Records()
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(records) {
		fmt.Println("无效序号（list 命令查看历史）")
		return ""
	}
	if records[idx].Combined == "" {
		fmt.Println("该记录的音频文件已丢失")
		return ""
	}
	return records[idx].Combined
}

func (l *Loop) export(arg string) {
	idxArg, dest, ok := strings.Cut(arg, " ")
	if !ok || strings.TrimSpace(dest) == "" {
		fmt.Println("用法: export <序号> <路径>")
		return
	}
	if path := l.combinedPath(idxArg); path != "" {
		l.app.Export(path, strings.TrimSpace(dest))
	}
}
