package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config 是 MyTTS 的顶层配置结构。
type Config struct {
	TTSEngine TTSEngineConfig `yaml:"tts_engine"`
	TTSParams TTSParamsConfig `yaml:"tts_params"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	Log       LogConfig       `yaml:"log"`
}

// TTSEngineConfig 合成引擎配置。
type TTSEngineConfig struct {
	// Engine 引擎类型: kokoro（本地推理）或 edge（网络兜底）。
	Engine string `yaml:"engine"`
	// LangCode Kokoro 语言代码（a=美式英语，b=英式英语，z=中文等）。
	LangCode string `yaml:"lang_code"`
	// Voice 默认语音名称，如 af_bella。
	Voice string `yaml:"voice"`
	// OutputDir 输出目录，历史记录文件和导出音频都放在这里。
	OutputDir string `yaml:"output_dir"`
	// TempDir 临时分块文件目录，为空则使用 <output_dir>/temp_audio。
	TempDir string `yaml:"temp_dir"`
	// VoicesDir 语音文件目录。
	VoicesDir string `yaml:"voices_dir"`
	// ModelDir Kokoro 模型文件目录（model.onnx / voices.bin / tokens.txt）。
	ModelDir string `yaml:"model_dir"`
	// VoicesBaseURL 语音文件下载地址前缀。
	VoicesBaseURL string `yaml:"voices_base_url"`
	// ModelBaseURL 模型文件下载地址前缀。
	ModelBaseURL string `yaml:"model_base_url"`
	// NumThreads 推理线程数。
	NumThreads int `yaml:"num_threads"`
}

// TTSParamsConfig 合成参数配置。
type TTSParamsConfig struct {
	// SpeedDefault 默认语速倍率，范围 [0.1, 2.0]。
	SpeedDefault float64 `yaml:"speed_default"`
	// SplitPattern 文本分段正则，默认按换行分段。
	SplitPattern string `yaml:"split_pattern"`
}

// CleanupConfig 临时文件清理配置。
type CleanupConfig struct {
	// RetentionDays 临时分块文件的保留天数。
	RetentionDays int `yaml:"retention_days"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age_days"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 文件不存在时返回内置默认配置（不视为错误）。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			setDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	// 展开环境变量，如 ${MYTTS_MODEL_DIR}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.TTSEngine.Engine == "" {
		cfg.TTSEngine.Engine = "kokoro"
	}
	if cfg.TTSEngine.LangCode == "" {
		cfg.TTSEngine.LangCode = "a"
	}
	if cfg.TTSEngine.Voice == "" {
		cfg.TTSEngine.Voice = "af_bella"
	}
	if cfg.TTSEngine.OutputDir == "" {
		cfg.TTSEngine.OutputDir = "outputs"
	}
	if cfg.TTSEngine.TempDir == "" {
		cfg.TTSEngine.TempDir = filepath.Join(cfg.TTSEngine.OutputDir, "temp_audio")
	}
	if cfg.TTSEngine.VoicesDir == "" {
		cfg.TTSEngine.VoicesDir = "voices"
	}
	if cfg.TTSEngine.ModelDir == "" {
		cfg.TTSEngine.ModelDir = "models/kokoro"
	}
	if cfg.TTSEngine.VoicesBaseURL == "" {
		cfg.TTSEngine.VoicesBaseURL = "https://huggingface.co/hexgrad/Kokoro-82M/resolve/main"
	}
	if cfg.TTSEngine.ModelBaseURL == "" {
		cfg.TTSEngine.ModelBaseURL = "https://huggingface.co/csukuangfj/kokoro-multi-lang-v1_0/resolve/main"
	}
	if cfg.TTSEngine.NumThreads == 0 {
		cfg.TTSEngine.NumThreads = 2
	}
	if cfg.TTSParams.SpeedDefault == 0 {
		cfg.TTSParams.SpeedDefault = 1.0
	}
	if cfg.TTSParams.SplitPattern == "" {
		cfg.TTSParams.SplitPattern = `\n+`
	}
	if cfg.Cleanup.RetentionDays == 0 {
		cfg.Cleanup.RetentionDays = 7
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// validate 检查取值范围和正则合法性。
func validate(cfg *Config) error {
	if cfg.TTSParams.SpeedDefault < 0.1 || cfg.TTSParams.SpeedDefault > 2.0 {
		return fmt.Errorf("speed_default 超出范围 [0.1, 2.0]: %v", cfg.TTSParams.SpeedDefault)
	}
	if _, err := regexp.Compile(cfg.TTSParams.SplitPattern); err != nil {
		return fmt.Errorf("split_pattern 不是合法正则: %w", err)
	}
	return nil
}

// LedgerPath 返回历史记录文件路径。
func (c *Config) LedgerPath() string {
	return filepath.Join(c.TTSEngine.OutputDir, "generations.json")
}
