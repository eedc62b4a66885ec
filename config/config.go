// Package config 负责加载 jacket 的运行参数：默认值、jacket.yaml 与 JACKET_ 环境变量。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ByLCY/jacket/artwork"
	"github.com/ByLCY/jacket/job"
	"github.com/ByLCY/jacket/layout"
	"github.com/ByLCY/jacket/proof"
)

// EnvPrefix 是环境变量前缀，例如 JACKET_PROOF_PRINT_DPI。
const EnvPrefix = "JACKET"

// Config 是完整的运行配置。
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Layout  LayoutConfig  `mapstructure:"layout" yaml:"layout"`
	Books   BooksConfig   `mapstructure:"books" yaml:"books"`
	Artwork ArtworkConfig `mapstructure:"artwork" yaml:"artwork"`
	Text    TextConfig    `mapstructure:"text" yaml:"text"`
	Proof   proof.Config  `mapstructure:"proof" yaml:"proof"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// LoggerConfig 控制日志输出。
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // console 或 json
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// LayoutConfig 是书堆排布的间距与包边余量（毫米）。
type LayoutConfig struct {
	GapMm        float64 `mapstructure:"gap_mm" yaml:"gap_mm"`
	WrapMarginMm float64 `mapstructure:"wrap_margin_mm" yaml:"wrap_margin_mm"`
	TopMarginMm  float64 `mapstructure:"top_margin_mm" yaml:"top_margin_mm"`
}

// BooksConfig 限制书籍数量与可加工尺寸。
type BooksConfig struct {
	MaxBooks       int     `mapstructure:"max_books" yaml:"max_books"`
	MaxHeightMm    float64 `mapstructure:"max_height_mm" yaml:"max_height_mm"`
	MaxWrapWidthMm float64 `mapstructure:"max_wrap_width_mm" yaml:"max_wrap_width_mm"`
}

// ArtworkConfig 合并低分辨率提示与按引用获取的参数。
type ArtworkConfig struct {
	Advice artwork.AdviceConfig `mapstructure:",squash" yaml:",inline"`
	Fetch  artwork.FetchConfig  `mapstructure:",squash" yaml:",inline"`
}

// TextConfig 是三类文字的自适应字号范围。
type TextConfig struct {
	Caption    layout.TextLimits `mapstructure:"caption" yaml:"caption"`
	SpineTitle layout.TextLimits `mapstructure:"spine_title" yaml:"spine_title"`
	SpineSmall layout.TextLimits `mapstructure:"spine_small" yaml:"spine_small"`
}

// ServerConfig 用于 serve 命令。
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// NewDefaultConfig 返回只包含默认值的配置。
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults 写入全部默认值。数值取自各包的 Default* 函数，保持一致。
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "jacket")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Layout --
	pipe := layout.DefaultPipelineConfig()
	v.SetDefault("layout.gap_mm", pipe.GapMm)
	v.SetDefault("layout.wrap_margin_mm", pipe.Margins.WrapMarginMm)
	v.SetDefault("layout.top_margin_mm", pipe.Margins.TopMarginMm)

	// -- Books --
	v.SetDefault("books.max_books", job.DefaultConfig().MaxBooks)
	v.SetDefault("books.max_height_mm", layout.DefaultPhysicalLimits.MaxHeightMm)
	v.SetDefault("books.max_wrap_width_mm", layout.DefaultPhysicalLimits.MaxWrapWidthMm)

	// -- Artwork --
	advice := artwork.DefaultAdviceConfig()
	fetch := artwork.DefaultFetchConfig()
	v.SetDefault("artwork.min_print_dpi", advice.MinPrintDPI)
	v.SetDefault("artwork.reference_width_mm", advice.ReferenceWidthMm)
	v.SetDefault("artwork.reference_height_mm", advice.ReferenceHeightMm)
	v.SetDefault("artwork.max_pixels", advice.MaxPixels)
	v.SetDefault("artwork.fetch_timeout", fetch.Timeout.String())
	v.SetDefault("artwork.cache_ttl", fetch.CacheTTL.String())
	v.SetDefault("artwork.max_bytes", fetch.MaxBytes)
	v.SetDefault("artwork.allowed_hosts", []string{})

	// -- Text --
	setTextDefaults(v, "text.caption", pipe.Caption)
	setTextDefaults(v, "text.spine_title", pipe.SpineTitle)
	setTextDefaults(v, "text.spine_small", pipe.SpineSmall)

	// -- Proof --
	pr := proof.DefaultConfig()
	v.SetDefault("proof.page_width_in", pr.PageWidthIn)
	v.SetDefault("proof.page_height_in", pr.PageHeightIn)
	v.SetDefault("proof.print_dpi", pr.PrintDPI)
	v.SetDefault("proof.guide_width_mm", pr.GuideWidthMm)
	v.SetDefault("proof.creator", pr.Creator)

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.requests_per_minute", 30)
	v.SetDefault("server.max_body_bytes", 80<<20)
	v.SetDefault("server.shutdown_timeout", "5s")
}

func setTextDefaults(v *viper.Viper, prefix string, l layout.TextLimits) {
	v.SetDefault(prefix+".min_font_size_px", l.MinFontSizePx)
	v.SetDefault(prefix+".default_font_size_px", l.DefaultFontSizePx)
	v.SetDefault(prefix+".max_lines", l.MaxLines)
	v.SetDefault(prefix+".line_height", l.LineHeight)
}

// Bind 把 viper 指向配置文件与环境变量。file 为空时在当前目录查找 jacket.yaml；
// 找不到文件不算错误。
func Bind(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("jacket")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// NewConfigFromViper 解码并校验配置。
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate 检查取值范围。
func (c *Config) Validate() error {
	if c.Layout.GapMm < 0 || c.Layout.WrapMarginMm < 0 || c.Layout.TopMarginMm < 0 {
		return fmt.Errorf("layout margins must not be negative")
	}
	if c.Books.MaxBooks <= 0 {
		return fmt.Errorf("books.max_books must be a positive integer")
	}
	if c.Books.MaxHeightMm <= 0 || c.Books.MaxWrapWidthMm <= 0 {
		return fmt.Errorf("books.max_height_mm and books.max_wrap_width_mm must be positive")
	}
	if c.Artwork.Advice.MinPrintDPI <= 0 {
		return fmt.Errorf("artwork.min_print_dpi must be positive")
	}
	if c.Artwork.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("artwork.max_bytes must be positive")
	}
	if c.Artwork.Advice.MaxPixels <= 0 {
		return fmt.Errorf("artwork.max_pixels must be positive")
	}
	for name, l := range map[string]layout.TextLimits{
		"text.caption":     c.Text.Caption,
		"text.spine_title": c.Text.SpineTitle,
		"text.spine_small": c.Text.SpineSmall,
	} {
		if l.MinFontSizePx < 1 || l.DefaultFontSizePx < l.MinFontSizePx {
			return fmt.Errorf("%s: font sizes must satisfy 1 <= min <= default", name)
		}
		if l.MaxLines < 1 || l.LineHeight <= 0 {
			return fmt.Errorf("%s: max_lines and line_height must be positive", name)
		}
	}
	if c.Proof.PageWidthIn <= 0 || c.Proof.PageHeightIn <= 0 || c.Proof.PrintDPI <= 0 {
		return fmt.Errorf("proof page size and print_dpi must be positive")
	}
	if c.Server.RequestsPerMinute < 0 {
		return fmt.Errorf("server.requests_per_minute must not be negative")
	}
	return nil
}

// Job 把配置转换为会话参数；字体沿用内置默认。
func (c *Config) Job() job.Config {
	pipe := layout.DefaultPipelineConfig()
	pipe.GapMm = c.Layout.GapMm
	pipe.Margins = layout.Margins{WrapMarginMm: c.Layout.WrapMarginMm, TopMarginMm: c.Layout.TopMarginMm}
	pipe.Caption = c.Text.Caption
	pipe.SpineTitle = c.Text.SpineTitle
	pipe.SpineSmall = c.Text.SpineSmall
	return job.Config{
		MaxBooks: c.Books.MaxBooks,
		Limits:   layout.PhysicalLimits{MaxHeightMm: c.Books.MaxHeightMm, MaxWrapWidthMm: c.Books.MaxWrapWidthMm},
		Pipeline: pipe,
		Advice:   c.Artwork.Advice,
	}
}
