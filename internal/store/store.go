// Package store 管理语音与模型文件的本地缓存和按需下载。
//
// 所有 Ensure 调用都先检查本地文件，命中则完全跳过网络请求，
// 也不对已有文件做内容校验。同一文件的并发下载按 key 串行化，
// 避免重复传输。
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iabetor/mytts/internal/logger"
)

var (
	// ErrArtifactMissing 表示文件不存在且无法获取。
	ErrArtifactMissing = errors.New("语音/模型文件不存在")
	// ErrFetchFailed 表示下载尝试失败，本次调用终止。
	ErrFetchFailed = errors.New("下载失败")
)

// modelFiles 是 Kokoro 推理所需的模型文件清单。
var modelFiles = []string{"model.onnx", "voices.bin", "tokens.txt"}

// Store 是语音与模型文件的本地存储。
type Store struct {
	voicesDir     string
	modelDir      string
	voicesBaseURL string
	modelBaseURL  string
	client        *http.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex // 按 artifact key 串行化下载
}

// Config Store 的构造配置。
type Config struct {
	VoicesDir     string
	ModelDir      string
	VoicesBaseURL string
	ModelBaseURL  string
}

// New 创建 Store。目录不存在时自动创建。
func New(cfg Config) (*Store, error) {
	for _, dir := range []string{cfg.VoicesDir, cfg.ModelDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建目录 %s 失败: %w", dir, err)
		}
	}

	return &Store{
		voicesDir:     cfg.VoicesDir,
		modelDir:      cfg.ModelDir,
		voicesBaseURL: strings.TrimSuffix(cfg.VoicesBaseURL, "/"),
		modelBaseURL:  strings.TrimSuffix(cfg.ModelBaseURL, "/"),
		client:        &http.Client{Timeout: 10 * time.Minute},
		locks:         make(map[string]*sync.Mutex),
	}, nil
}

// EnsureVoice 确保 voices/<name>.pt 存在，缺失时下载。
// 返回语音文件的本地路径。
func (s *Store) EnsureVoice(ctx context.Context, name string) (string, error) {
	name = strings.TrimSuffix(name, ".pt")
	if name == "" {
		return "", fmt.Errorf("%w: 语音名称为空", ErrArtifactMissing)
	}

	local := filepath.Join(s.voicesDir, name+".pt")
	url := s.voicesBaseURL + "/voices/" + name + ".pt"
	if err := s.ensureFile(ctx, "voice:"+name, local, url); err != nil {
		return "", err
	}
	return local, nil
}

// EnsureModel 确保 Kokoro 模型文件齐全，缺失的逐个下载。
// espeak-ng-data 目录不在下载范围内，缺失时只告警。
func (s *Store) EnsureModel(ctx context.Context) error {
	for _, f := range modelFiles {
		local := filepath.Join(s.modelDir, f)
		url := s.modelBaseURL + "/" + f
		if err := s.ensureFile(ctx, "model:"+f, local, url); err != nil {
			return err
		}
	}

	dataDir := filepath.Join(s.modelDir, "espeak-ng-data")
	if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
		logger.Warnf("[store] espeak-ng-data 目录不存在，英文合成可能失败: %s", dataDir)
	}
	return nil
}

// ModelDir 返回模型目录路径。
func (s *Store) ModelDir() string {
	return s.modelDir
}

// ListVoices 返回本地已有的语音名称（voices/*.pt 的文件名去掉扩展名），
// 按字典序排列。目录不存在时返回空列表。
func (s *Store) ListVoices() []string {
	entries, err := os.ReadDir(s.voicesDir)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pt") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".pt"))
	}
	sort.Strings(names)
	return names
}

// ensureFile 本地存在则直接返回；否则按 key 加锁后下载。
// 拿到锁后重新检查，等待锁期间别人可能已经下载完成。
func (s *Store) ensureFile(ctx context.Context, key, local, url string) error {
	if _, err := os.Stat(local); err == nil {
		return nil
	}

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(local); err == nil {
		return nil
	}

	logger.Infof("[store] %s 不存在，开始下载: %s", local, url)
	if err := s.download(ctx, url, local); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFetchFailed, key, err)
	}

	// 下载后再确认一次，防止写入被外部清掉
	if _, err := os.Stat(local); err != nil {
		return fmt.Errorf("%w: %s 下载后仍不存在", ErrArtifactMissing, local)
	}

	logger.Infof("[store] 已下载: %s", local)
	return nil
}

// keyLock 返回指定 key 的互斥锁，不存在则创建。
func (s *Store) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[key] = l
	return l
}

// download 将 url 内容写入 dest。先写 dest.part，成功后重命名，
// 避免留下半截文件。
func (s *Store) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	part := dest + ".part"
	f, err := os.Create(part)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(part)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(part)
		return err
	}

	return os.Rename(part, dest)
}
