// Package app 是界面层与各服务之间的粘合层。
// 所有界面回调都通过 Invoke 投递到 Run 的事件循环中执行，
// 界面实现只需保证自身方法在事件循环线程调用时安全。
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/iabetor/mytts/internal/ledger"
	"github.com/iabetor/mytts/internal/logger"
	"github.com/iabetor/mytts/internal/orchestrator"
	"github.com/iabetor/mytts/internal/reaper"
	"github.com/iabetor/mytts/internal/synth"
)

// View 是界面层需要实现的回调接口。
// 所有方法都只会在 Run 的事件循环 goroutine 中调用。
type View interface {
	// SetStatus 显示状态栏消息，timeoutMs<=0 表示常驻。
	SetStatus(msg string, timeoutMs int)
	// SetSynthesizeEnabled 控制合成入口是否可用。
	SetSynthesizeEnabled(enabled bool)
	// ShowError 显示错误。
	ShowError(msg string)
	// SetGenerationTime 显示上次合成耗时（秒）。
	SetGenerationTime(seconds float64)
	// SetWaveform 让界面加载并展示音频波形。
	SetWaveform(path string)
	// RefreshResults 用当前账本内容刷新结果列表。
	RefreshResults(records []ledger.GenerationRecord)
}

// AudioPlayer 播放本地音频文件。
type AudioPlayer interface {
	PlayFile(ctx context.Context, path string) error
}

// Config App 的运行参数。
type Config struct {
	TempDir       string
	RetentionDays int
}

// App 应用的事件循环与命令入口。
type App struct {
	view   View
	orch   *orchestrator.Orchestrator
	led    *ledger.Ledger
	player AudioPlayer
	cfg    Config

	invoke chan func()
}

// New 创建 App。player 可为 nil（无音频设备时播放命令报错）。
func New(view View, orch *orchestrator.Orchestrator, led *ledger.Ledger, player AudioPlayer, cfg Config) *App {
	return &App{
		view:   view,
		orch:   orch,
		led:    led,
		player: player,
		cfg:    cfg,
		invoke: make(chan func(), 32),
	}
}

// Run 运行事件循环直到 ctx 取消。
// 启动与退出时各做一次过期 chunk 清理。
func (a *App) Run(ctx context.Context) {
	reaper.Reap(a.cfg.TempDir, a.cfg.RetentionDays)

	a.view.RefreshResults(a.led.Records())
	a.view.SetSynthesizeEnabled(true)
	a.view.SetStatus("就绪", 0)

	for {
		select {
		case <-ctx.Done():
			reaper.Reap(a.cfg.TempDir, a.cfg.RetentionDays)
			logger.Infof("[app] 事件循环退出")
			return
		case fn := <-a.invoke:
			fn()
		case ev, ok := <-a.orch.Events():
			if !ok {
				return
			}
			a.handleEvent(ev)
		}
	}
}

// Invoke 将 fn 投递到事件循环执行。循环未运行时可能阻塞。
func (a *App) Invoke(fn func()) {
	a.invoke <- fn
}

// Synthesize 提交一个合成任务。重复提交只提示忙，不报错。
func (a *App) Synthesize(text, voice string, speed float64) {
	a.Invoke(func() {
		if _, err := a.orch.Submit(text, voice, speed); err != nil {
			if errors.Is(err, orchestrator.ErrBusy) {
				a.view.SetStatus("合成任务进行中，请稍候", 3000)
				return
			}
			a.view.ShowError(fmt.Sprintf("提交失败: %v", err))
		}
	})
}

// ClearResults 清空账本与结果列表。chunk 文件留给定期清理。
func (a *App) ClearResults() {
	a.Invoke(func() {
		if err := a.led.ClearAll(); err != nil {
			a.view.ShowError(fmt.Sprintf("清空历史失败: %v", err))
			return
		}
		a.view.RefreshResults(nil)
		a.view.SetStatus("历史已清空", 3000)
	})
}

// ClearTempFiles 立即删除全部 chunk 文件并移除账本中的分段引用。
func (a *App) ClearTempFiles() {
	a.Invoke(func() {
		n := reaper.ReapAll(a.cfg.TempDir)
		if err := a.led.PurgeChunkRefs(); err != nil {
			a.view.ShowError(fmt.Sprintf("更新账本失败: %v", err))
			return
		}
		a.view.RefreshResults(a.led.Records())
		a.view.SetStatus(fmt.Sprintf("已删除 %d 个临时文件", n), 3000)
	})
}

// Play 异步播放指定音频文件。
func (a *App) Play(ctx context.Context, path string) {
	a.Invoke(func() {
		if a.player == nil {
			a.view.ShowError("无可用音频设备")
			return
		}
		go func() {
			if err := a.player.PlayFile(ctx, path); err != nil {
				logger.Errorf("[app] 播放失败: %v", err)
				a.Invoke(func() {
					a.view.ShowError(fmt.Sprintf("播放失败: %v", err))
				})
			}
		}()
	})
}

// Export 将音频导出到 destPath，非 WAV 请求退回 WAV。
func (a *App) Export(srcPath, destPath string) {
	a.Invoke(func() {
		actual, err := synth.Export(srcPath, destPath)
		if err != nil {
			a.view.ShowError(fmt.Sprintf("导出失败: %v", err))
			return
		}
		a.view.SetStatus(fmt.Sprintf("已导出: %s", actual), 5000)
	})
}

// handleEvent 把调度器事件翻译为界面更新。
func (a *App) handleEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventStarted:
		a.view.SetSynthesizeEnabled(false)
		a.view.SetStatus("合成中...", 0)

	case orchestrator.EventCompleted:
		a.view.SetSynthesizeEnabled(true)
		a.view.SetGenerationTime(ev.Elapsed.Seconds())
		if ev.Result != nil && ev.Result.CombinedPath != "" {
			a.view.SetWaveform(ev.Result.CombinedPath)
		}
		a.view.RefreshResults(a.led.Records())
		if ev.Record == nil {
			a.view.SetStatus("文本为空，未生成音频", 3000)
		} else {
			a.view.SetStatus(fmt.Sprintf("合成完成，耗时 %.2f 秒", ev.Elapsed.Seconds()), 5000)
		}

	case orchestrator.EventFailed:
		a.view.SetSynthesizeEnabled(true)
		a.view.ShowError(fmt.Sprintf("合成失败: %v", ev.Err))
		a.view.SetStatus("合成失败", 5000)
	}
}
