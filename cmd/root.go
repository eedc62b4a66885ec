// Package cmd 定义 jacket 命令行。
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ByLCY/jacket/artwork"
	"github.com/ByLCY/jacket/config"
	"github.com/ByLCY/jacket/job"
	"github.com/ByLCY/jacket/jobfile"
	"github.com/ByLCY/jacket/layout"
	"github.com/ByLCY/jacket/observability"
	canvasrenderer "github.com/ByLCY/jacket/renderer/canvas"
)

// app 保存一次命令执行共享的配置与日志。
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd 创建根命令。每次调用使用独立的 viper 实例。
func NewRootCmd() *cobra.Command {
	var cfgFile string
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "jacket",
		Short: "Book jacket layout and proof engine",
		Long: `Jacket lays out one wrap-around artwork over a stack of books,
previews the result and exports a per-book print proof.

Jobs are described in .jacket files; settings come from jacket.yaml,
JACKET_* environment variables and a local .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env 可选，忽略错误
			_ = godotenv.Load()
			config.SetDefaults(a.v)
			if err := config.Bind(a.v, cfgFile); err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			observability.InitializeLogger(cfg.Logger)
			a.logger = observability.GetLogger()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync()
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./jacket.yaml)")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("logger.level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(newProofCmd(a), newPreviewCmd(a), newServeCmd(a))
	return cmd
}

func (a *app) engine(baseDir string) *canvasrenderer.Renderer {
	return canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{BaseDir: baseDir, Logger: a.logger.Named("render")})
}

// open 装载作业文件，原图相对作业文件所在目录解析。
func (a *app) open(ctx context.Context, path string, eng *canvasrenderer.Renderer) (*job.Session, error) {
	sess, err := jobfile.LoadFile(ctx, path, jobfile.Options{
		Config:   a.cfg.Job(),
		Measurer: eng,
		Logger:   a.logger,
		Fetcher:  artwork.NewFetcher(a.cfg.Artwork.Fetch, nil, a.logger.Named("fetch")),
	})
	if err != nil {
		return nil, fmt.Errorf("装载作业 %s 失败: %w", path, err)
	}
	if adv, ok := sess.Advisory(); ok {
		a.logger.Warn(adv.Message, zap.Float64("effective_dpi", adv.EffectiveDPI), zap.Float64("min_dpi", adv.MinDPI))
	}
	return sess, nil
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}
	return nil
}

func writeDebug(v any, path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建调试输出目录失败: %w", err)
	}
	return layout.WriteDebugJSON(v, path)
}

// defaultOutput 把 shelf.jacket 变为 shelf<suffix>。
func defaultOutput(input, suffix string) string {
	ext := filepath.Ext(input)
	return input[:len(input)-len(ext)] + suffix
}
