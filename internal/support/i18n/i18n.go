package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var embeddedLocales embed.FS

// Manager 管理翻译内容。
type Manager struct {
	defaultLang  string
	translations map[string]map[string]string
	logger       *slog.Logger
	mu           sync.RWMutex
	matcher      language.Matcher
	tags         []language.Tag
}

// Option 用于配置 Manager。
type Option func(*Manager)

// WithLogger 设置 Manager 使用的日志实例。
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithDefaultLang 设置默认语言。
func WithDefaultLang(lang string) Option {
	return func(m *Manager) {
		m.defaultLang = lang
	}
}

// NewManager loads the embedded locale files and builds a language matcher over them.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		defaultLang:  "en-US",
		translations: make(map[string]map[string]string),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	entries, err := embeddedLocales.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read embedded locales: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := embeddedLocales.ReadFile("locales/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", entry.Name(), err)
		}
		if err := m.merge(strings.TrimSuffix(entry.Name(), ".json"), data); err != nil {
			return nil, err
		}
	}
	m.rebuildMatcher()
	return m, nil
}

// LoadFromDir 从外部目录加载翻译文件，覆盖同名键。目录不存在时忽略。
func (m *Manager) LoadFromDir(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read external locales: %w", err)
	}
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			m.logger.Warn("failed to read external locale file", "file", file.Name(), "error", err)
			continue
		}
		if err := m.merge(strings.TrimSuffix(file.Name(), ".json"), data); err != nil {
			m.logger.Warn("failed to merge external locale file", "file", file.Name(), "error", err)
		}
	}
	m.rebuildMatcher()
	return nil
}

func (m *Manager) merge(lang string, data []byte) error {
	var content map[string]string
	if err := json.Unmarshal(data, &content); err != nil {
		return fmt.Errorf("decode locale %s: %w", lang, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.translations[lang]
	if !ok {
		table = make(map[string]string, len(content))
		m.translations[lang] = table
	}
	for k, v := range content {
		table[k] = v
	}
	return nil
}

// rebuildMatcher puts the default language first so it wins on ties.
func (m *Manager) rebuildMatcher() {
	m.mu.Lock()
	defer m.mu.Unlock()
	langs := make([]string, 0, len(m.translations))
	for lang := range m.translations {
		if lang != m.defaultLang {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	tags := []language.Tag{language.Make(m.defaultLang)}
	for _, lang := range langs {
		tags = append(tags, language.Make(lang))
	}
	m.tags = tags
	m.matcher = language.NewMatcher(tags)
}

// Match resolves user preferences (query value, cookie or Accept-Language header) to a
// supported locale name such as "zh-CN".
func (m *Manager) Match(preferences ...string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.matcher == nil {
		return m.defaultLang
	}
	var desired []language.Tag
	for _, pref := range preferences {
		if strings.TrimSpace(pref) == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(pref)
		if err != nil {
			continue
		}
		desired = append(desired, tags...)
	}
	if len(desired) == 0 {
		return m.defaultLang
	}
	_, idx, confidence := m.matcher.Match(desired...)
	if confidence == language.No {
		return m.defaultLang
	}
	return m.tags[idx].String()
}

// Translate 按语言与键名返回翻译内容，找不到时回退到默认语言，再回退为 key 本身。
func (m *Manager) Translate(lang, key string, args ...interface{}) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if tag, err := language.Parse(lang); err == nil {
		lang = tag.String()
	}
	for _, candidate := range []string{lang, m.defaultLang} {
		if trans, ok := m.translations[candidate]; ok {
			if val, ok := trans[key]; ok {
				if len(args) > 0 {
					return fmt.Sprintf(val, args...)
				}
				return val
			}
		}
	}
	return key
}

// SupportedLanguages 返回支持的语言列表。
func (m *Manager) SupportedLanguages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	langs := make([]string, 0, len(m.translations))
	for k := range m.translations {
		langs = append(langs, k)
	}
	sort.Strings(langs)
	return langs
}
