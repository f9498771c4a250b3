// Package config provides configuration management for the pdf-tools
// applications.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"pdf-tools/internal/logger"
	"pdf-tools/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "pdf-tools-config.json"
	// EnvOpenAIAPIKey is the environment variable name for the OpenAI API key
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvOpenAIBaseURL is the environment variable name for the OpenAI base URL
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	// EnvOpenAIModel is the environment variable name for the OpenAI model
	EnvOpenAIModel = "OPENAI_MODEL"
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the default model to use
	DefaultModel = "gpt-4o-mini"
	// DefaultSourceLanguage is the default source language tag
	DefaultSourceLanguage = "en"
	// DefaultTargetLanguage is the default target language tag
	DefaultTargetLanguage = "zh-CN"
	// DefaultLayerName is the default name of the translation OCG layer
	DefaultLayerName = "Translation"
	// DefaultTextColor is the default overlay text color
	DefaultTextColor = "darkred"
	// DefaultContextWindow is the default batch size budget in characters
	DefaultContextWindow = 4000
	// DefaultConcurrency is the default number of concurrent translation batches
	DefaultConcurrency = 3
)

// Manager manages application configuration
type Manager struct {
	configPath string
	config     *types.Config
}

// NewManager creates a new Manager with the specified config path.
// If configPath is empty, it uses the default path in the user's home directory.
func NewManager(configPath string) (*Manager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "pdf-tools", DefaultConfigFileName)
	}

	logger.Info("config manager initialized", logger.String("configPath", configPath))
	return &Manager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

func defaultConfig() *types.Config {
	return &types.Config{
		OpenAIAPIKey:   "",
		OpenAIBaseURL:  DefaultBaseURL,
		OpenAIModel:    DefaultModel,
		SourceLanguage: DefaultSourceLanguage,
		TargetLanguage: DefaultTargetLanguage,
		LayerName:      DefaultLayerName,
		TextColor:      DefaultTextColor,
		KeepOriginal:   true,
		ContextWindow:  DefaultContextWindow,
		Concurrency:    DefaultConcurrency,
	}
}

// Load loads configuration from the config file.
// If the file doesn't exist, defaults are used. Environment variables act
// as fallbacks for the API key, base URL and model.
func (m *Manager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
			m.config = defaultConfig()
		} else {
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
	} else {
		config := &types.Config{}
		if err := json.Unmarshal(data, config); err != nil {
			logger.Warn("invalid config file format, using defaults",
				logger.String("path", m.configPath), logger.Err(err))
			m.config = defaultConfig()
		} else {
			logger.Info("configuration loaded",
				logger.String("path", m.configPath),
				logger.Int("apiKeyLength", len(config.OpenAIAPIKey)),
				logger.String("baseURL", config.OpenAIBaseURL),
				logger.String("model", config.OpenAIModel))
			m.config = config
		}
	}

	applyDefaults(m.config)
	return nil
}

// applyDefaults fills empty fields with default values.
func applyDefaults(c *types.Config) {
	if c.OpenAIBaseURL == "" {
		c.OpenAIBaseURL = DefaultBaseURL
	}
	if c.OpenAIModel == "" {
		c.OpenAIModel = DefaultModel
	}
	if c.SourceLanguage == "" {
		c.SourceLanguage = DefaultSourceLanguage
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = DefaultTargetLanguage
	}
	if c.LayerName == "" {
		c.LayerName = DefaultLayerName
	}
	if c.TextColor == "" {
		c.TextColor = DefaultTextColor
	}
	if c.ContextWindow == 0 {
		c.ContextWindow = DefaultContextWindow
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
}

// Save saves the current configuration to the config file.
func (m *Manager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

// GetAPIKey returns the OpenAI API key, falling back to the environment.
func (m *Manager) GetAPIKey() string {
	if m.config != nil && m.config.OpenAIAPIKey != "" {
		return m.config.OpenAIAPIKey
	}
	return os.Getenv(EnvOpenAIAPIKey)
}

// SetAPIKey sets the OpenAI API key and saves the configuration.
func (m *Manager) SetAPIKey(key string) error {
	if m.config == nil {
		m.config = defaultConfig()
	}
	m.config.OpenAIAPIKey = key
	return m.Save()
}

// GetBaseURL returns the OpenAI API base URL, falling back to the environment.
func (m *Manager) GetBaseURL() string {
	if m.config != nil && m.config.OpenAIBaseURL != "" {
		return m.config.OpenAIBaseURL
	}
	if envURL := os.Getenv(EnvOpenAIBaseURL); envURL != "" {
		return envURL
	}
	return DefaultBaseURL
}

// GetModel returns the model to use, falling back to the environment.
func (m *Manager) GetModel() string {
	if m.config != nil && m.config.OpenAIModel != "" {
		return m.config.OpenAIModel
	}
	if envModel := os.Getenv(EnvOpenAIModel); envModel != "" {
		return envModel
	}
	return DefaultModel
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() *types.Config {
	if m.config == nil {
		return defaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *Manager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetLastInput returns the last input value.
func (m *Manager) GetLastInput() string {
	if m.config != nil {
		return m.config.LastInput
	}
	return ""
}

// SetLastInput sets the last input value and saves the configuration.
// Save failures are ignored here, losing the value is harmless.
func (m *Manager) SetLastInput(input string) {
	if m.config == nil {
		m.config = defaultConfig()
	}
	m.config.LastInput = input
	_ = m.Save()
}

// ValidateLanguagePair checks that source and target are parseable BCP 47
// tags and differ from each other. Returns the canonical tags.
func ValidateLanguagePair(source, target string) (language.Tag, language.Tag, error) {
	src, err := language.Parse(source)
	if err != nil {
		return language.Und, language.Und,
			types.NewAppErrorWithDetails(types.ErrConfig, "invalid source language", source, err)
	}

	dst, err := language.Parse(target)
	if err != nil {
		return language.Und, language.Und,
			types.NewAppErrorWithDetails(types.ErrConfig, "invalid target language", target, err)
	}

	if src == dst {
		return language.Und, language.Und,
			types.NewAppError(types.ErrConfig, "source and target language are identical", nil)
	}

	return src, dst, nil
}

// LanguageName returns the English display name of a language tag for use
// in translation prompts, e.g. "fr" -> "French". Unparseable tags are
// returned unchanged.
func LanguageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Languages().Name(t); name != "" {
		return name
	}
	return tag
}
