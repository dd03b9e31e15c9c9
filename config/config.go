package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	LLM      LLMConfig      `mapstructure:"llm"`
	OSS      OSSConfig      `mapstructure:"oss"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// LLMConfig OpenAI 兼容接口配置
type LLMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	ChatModel      string `mapstructure:"chat_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type QueueConfig struct {
	AnalysisQueue string `mapstructure:"analysis_queue"`
	MaxWorkers    int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type UploadConfig struct {
	MaxSize           int64    `mapstructure:"max_size"`           // 最大文件大小（字节）
	ProjectDir        string   `mapstructure:"project_dir"`        // 项目解压目录
	ExpireHours       int      `mapstructure:"expire_hours"`       // 过期时间（小时）
	AllowedExtensions []string `mapstructure:"allowed_extensions"` // 允许的扩展名
}

// AnalysisConfig 分析管线调优参数
type AnalysisConfig struct {
	TopK            int `mapstructure:"top_k"`             // 语义检索返回的文件数
	DependencyDepth int `mapstructure:"dependency_depth"`  // 依赖扩展的最大跳数
	MaxSymbols      int `mapstructure:"max_symbols"`       // 单文件最多解释的符号数
	BatchSize       int `mapstructure:"batch_size"`        // 每次 LLM 调用解释的符号数
	SynthesisFloor  int `mapstructure:"synthesis_floor"`   // 综合解释单文件内容下限（字符）
	SynthesisCeil   int `mapstructure:"synthesis_ceiling"` // 综合解释单文件内容上限（字符）
	SynthesisBudget int `mapstructure:"synthesis_budget"`  // 综合解释提示词总预算（字符）
}

// TopKOrDefault 返回检索数量，未配置时使用默认值
func (c *AnalysisConfig) TopKOrDefault() int {
	if c.TopK <= 0 {
		return 10
	}
	return c.TopK
}

func (c *AnalysisConfig) DepthOrDefault() int {
	if c.DependencyDepth <= 0 {
		return 1
	}
	return c.DependencyDepth
}

func (c *AnalysisConfig) MaxSymbolsOrDefault() int {
	if c.MaxSymbols <= 0 {
		return 50
	}
	return c.MaxSymbols
}

func (c *AnalysisConfig) BatchSizeOrDefault() int {
	if c.BatchSize <= 0 {
		return 5
	}
	return c.BatchSize
}

func (c *AnalysisConfig) SynthesisFloorOrDefault() int {
	if c.SynthesisFloor <= 0 {
		return 500
	}
	return c.SynthesisFloor
}

func (c *AnalysisConfig) SynthesisCeilOrDefault() int {
	if c.SynthesisCeil <= 0 {
		return 4000
	}
	return c.SynthesisCeil
}

func (c *AnalysisConfig) SynthesisBudgetOrDefault() int {
	if c.SynthesisBudget <= 0 {
		return 20000
	}
	return c.SynthesisBudget
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	// 检查 config.local.yaml 是否存在
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
