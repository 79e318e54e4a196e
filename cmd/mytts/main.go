package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/iabetor/mytts/internal/app"
	"github.com/iabetor/mytts/internal/audio"
	"github.com/iabetor/mytts/internal/config"
	"github.com/iabetor/mytts/internal/ledger"
	"github.com/iabetor/mytts/internal/logger"
	"github.com/iabetor/mytts/internal/orchestrator"
	"github.com/iabetor/mytts/internal/store"
	"github.com/iabetor/mytts/internal/synth"
	"github.com/iabetor/mytts/internal/tts"
	"github.com/iabetor/mytts/internal/ui"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infof("[main] MyTTS 启动中 (engine=%s voice=%s)", cfg.TTSEngine.Engine, cfg.TTSEngine.Voice)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("[main] 收到信号 %v，正在关闭...", sig)
		cancel()
	}()

	st, err := store.New(store.Config{
		VoicesDir:     cfg.TTSEngine.VoicesDir,
		ModelDir:      cfg.TTSEngine.ModelDir,
		VoicesBaseURL: cfg.TTSEngine.VoicesBaseURL,
		ModelBaseURL:  cfg.TTSEngine.ModelBaseURL,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化文件存储失败: %v\n", err)
		os.Exit(1)
	}

	// 分段正则在 config.Load 里已校验过
	splitRe := regexp.MustCompile(cfg.TTSParams.SplitPattern)

	var pipeline tts.Pipeline
	var ensurer synth.VoiceEnsurer
	var voices []string
	switch cfg.TTSEngine.Engine {
	case "edge":
		pipeline = tts.NewEdgePipeline(splitRe)
	default:
		if err := st.EnsureModel(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "准备 Kokoro 模型失败: %v\n", err)
			os.Exit(1)
		}
		pipeline = tts.NewKokoroPipeline(tts.KokoroConfig{
			ModelDir:   cfg.TTSEngine.ModelDir,
			Lang:       cfg.TTSEngine.LangCode,
			NumThreads: cfg.TTSEngine.NumThreads,
			SplitRe:    splitRe,
		})
		ensurer = st
		voices = tts.VoiceNames()
	}
	defer pipeline.Close()

	engine := synth.NewEngine(pipeline, ensurer, cfg.TTSEngine.TempDir)
	led := ledger.New(cfg.LedgerPath())

	orch := orchestrator.New(engine, led, orchestrator.Config{})
	orch.Start(ctx)

	var player app.AudioPlayer
	if p, err := audio.NewPlayer(); err != nil {
		logger.Warnf("[main] 无可用音频设备，播放功能禁用: %v", err)
	} else {
		player = p
		defer p.Close()
	}

	console := ui.NewConsole()
	a := app.New(console, orch, led, player, app.Config{
		TempDir:       cfg.TTSEngine.TempDir,
		RetentionDays: cfg.Cleanup.RetentionDays,
	})
	go a.Run(ctx)

	loop := ui.NewLoop(a, console, voices, cfg.TTSEngine.Voice, cfg.TTSParams.SpeedDefault)
	loop.Run(ctx, os.Stdin)

	cancel()
	orch.Close()
	logger.Infof("[main] MyTTS 已停止")
}
