package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ByLCY/jacket/preview"
)

func newPreviewCmd(a *app) *cobra.Command {
	var (
		output        string
		debug         string
		width, height float64
		thumbnail     int
	)

	cmd := &cobra.Command{
		Use:   "preview <job.jacket>",
		Short: "Render the live preview as SVG",
		Long: `Fits the book stack into a container of the given size (never scaling up)
and writes the preview scene as SVG. The artwork is embedded as a thumbnail.`,
		Example: `  jacket preview shelf.jacket --width 1200 --height 800
  jacket preview shelf.jacket -o shelf.svg --debug scene.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if output == "" {
				output = defaultOutput(input, "-preview.svg")
			}
			container := preview.Container{WidthPx: width, HeightPx: height}
			if !container.Valid() {
				return fmt.Errorf("预览容器尺寸必须为正数，当前为 %gx%g", width, height)
			}

			eng := a.engine(filepath.Dir(input))
			sess, err := a.open(cmd.Context(), input, eng)
			if err != nil {
				return err
			}
			defer sess.Close()

			snap, err := sess.Snapshot()
			if err != nil {
				return err
			}
			defer snap.Release()

			svg, scene, err := preview.Render(snap, container, eng, thumbnail)
			if err != nil {
				return fmt.Errorf("生成预览失败: %w", err)
			}
			if err := writeDebug(scene, debug); err != nil {
				return err
			}
			if err := writeOutput(output, svg); err != nil {
				return err
			}
			for _, w := range scene.Warnings {
				a.logger.Warn(w.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已生成预览：%s（缩放 %.3f）\n", output, scene.Scale)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "SVG output path (default <job>-preview.svg)")
	cmd.Flags().StringVar(&debug, "debug", "", "write the preview scene as JSON")
	cmd.Flags().Float64Var(&width, "width", 1200, "container width in px")
	cmd.Flags().Float64Var(&height, "height", 800, "container height in px")
	cmd.Flags().IntVar(&thumbnail, "thumbnail", preview.DefaultThumbnailPx, "longest edge of the embedded artwork thumbnail")
	return cmd
}
