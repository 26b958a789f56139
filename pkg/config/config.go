// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Model      ModelConfig      `mapstructure:"model"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
	Timeout string `mapstructure:"timeout"`
}

// ModelConfig 生成模型配置（OpenAI 兼容端点）
type ModelConfig struct {
	Provider          string  `mapstructure:"provider"` // openai | qwen，均走 OpenAI 兼容协议
	Model             string  `mapstructure:"model"`
	APIKey            string  `mapstructure:"api_key"`  // 支持 ${ENV_VAR} 形式
	BaseURL           string  `mapstructure:"base_url"` // 空则默认或 OPENAI_BASE_URL
	Timeout           string  `mapstructure:"timeout"`  // 单次生成超时，如 "8s"
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"` // <=0 不限流
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// RetrievalConfig 语义检索配置
type RetrievalConfig struct {
	Type       string  `mapstructure:"type"`       // redis-vector | http
	Addr       string  `mapstructure:"addr"`       // redis-vector 后端地址
	DB         string  `mapstructure:"db"`         // Redis DB 编号，如 "0"
	Password   string  `mapstructure:"password"`   // 可选
	Collection string  `mapstructure:"collection"` // 索引前缀/集合名
	Endpoint   string  `mapstructure:"endpoint"`   // http 后端搜索服务地址
	TopK       int     `mapstructure:"top_k"`
	Threshold  float64 `mapstructure:"threshold"` // 最低相似度
	Timeout    string  `mapstructure:"timeout"`   // 单次检索超时
}

// MemoryConfig 短期记忆存储配置
type MemoryConfig struct {
	Type     string `mapstructure:"type"` // memory | postgres
	DSN      string `mapstructure:"dsn"`  // Postgres 连接串，type=postgres 时必填
	TTL      string `mapstructure:"ttl"`  // 轮次存活时长，空则默认 180s
	MaxTurns int    `mapstructure:"max_turns"`
}

// CacheConfig 检索结果缓存配置（advisory，命中与否不影响正确性）
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	TTL      string `mapstructure:"ttl"` // 空则默认 45s
}

// ScoringConfig 重排权重配置。默认 0.3/0.3/0.2/0.1/0.1，来源系统未给出调参依据，
// 因此作为可配置默认值而非硬编码不变量。
type ScoringConfig struct {
	Weights    ScoreWeights            `mapstructure:"weights"`
	Categories map[string]ScoreWeights `mapstructure:"categories"` // 按 category 覆盖
}

// ScoreWeights 单组评分权重
type ScoreWeights struct {
	Similarity  float64 `mapstructure:"similarity"`
	Entity      float64 `mapstructure:"entity"`
	Context     float64 `mapstructure:"context"`
	Practical   float64 `mapstructure:"practical"`
	Specificity float64 `mapstructure:"specificity"`
}

// PipelineConfig 查询管线配置
type PipelineConfig struct {
	ClassifyTimeout  string `mapstructure:"classify_timeout"`  // 分类 LLM 调用超时
	GenerateTimeout  string `mapstructure:"generate_timeout"`  // 生成调用超时
	RetrieveTimeout  string `mapstructure:"retrieve_timeout"`  // 检索调用超时
	RecentTurnsLimit int    `mapstructure:"recent_turns_limit"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetEnvPrefix("NAVIGATOR")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// replaceEnvVars 替换配置中 ${ENV_VAR} 形式的密钥
func replaceEnvVars(config *Config) {
	if strings.HasPrefix(config.Model.APIKey, "$") {
		envVar := strings.TrimPrefix(strings.TrimSuffix(config.Model.APIKey, "}"), "${")
		if val := os.Getenv(envVar); val != "" {
			config.Model.APIKey = val
		}
	}
}

// applyDefaults 填充缺省值
func (c *Config) applyDefaults() {
	if c.API.Port <= 0 {
		c.API.Port = 8080
	}
	if c.Retrieval.Type == "" {
		c.Retrieval.Type = "redis-vector"
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 10
	}
	if c.Retrieval.Threshold <= 0 {
		c.Retrieval.Threshold = 0.3
	}
	if c.Memory.Type == "" {
		c.Memory.Type = "memory"
	}
	if c.Memory.MaxTurns <= 0 {
		c.Memory.MaxTurns = 100
	}
	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Pipeline.RecentTurnsLimit <= 0 {
		c.Pipeline.RecentTurnsLimit = 10
	}
	if c.Scoring.Weights == (ScoreWeights{}) {
		c.Scoring.Weights = ScoreWeights{
			Similarity:  0.3,
			Entity:      0.3,
			Context:     0.2,
			Practical:   0.1,
			Specificity: 0.1,
		}
	}
}

// Validate 校验配置的关键字段
func (c *Config) Validate() error {
	if c.Memory.Type == "postgres" && c.Memory.DSN == "" {
		return fmt.Errorf("memory.type=postgres 时必须配置 memory.dsn")
	}
	if c.Retrieval.Type == "http" && c.Retrieval.Endpoint == "" {
		return fmt.Errorf("retrieval.type=http 时必须配置 retrieval.endpoint")
	}
	for _, d := range []struct {
		name  string
		value string
	}{
		{"memory.ttl", c.Memory.TTL},
		{"cache.ttl", c.Cache.TTL},
		{"model.timeout", c.Model.Timeout},
		{"retrieval.timeout", c.Retrieval.Timeout},
		{"pipeline.classify_timeout", c.Pipeline.ClassifyTimeout},
		{"pipeline.generate_timeout", c.Pipeline.GenerateTimeout},
		{"pipeline.retrieve_timeout", c.Pipeline.RetrieveTimeout},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("%s 不是合法时长 %q: %w", d.name, d.value, err)
		}
	}
	return nil
}

// Duration 解析时长字段，空或非法时返回 fallback
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
