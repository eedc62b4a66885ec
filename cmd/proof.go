package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ByLCY/jacket/proof"
)

func newProofCmd(a *app) *cobra.Command {
	var output, debug string

	cmd := &cobra.Command{
		Use:   "proof <job.jacket>",
		Short: "Export a per-book print proof PDF",
		Long: `Lays out the job and writes a multi-page PDF with one page per book.
Each page shows the artwork at print size, centred on that book's spine,
with spine, cover and trim guides.`,
		Example: `  jacket proof shelf.jacket
  jacket proof shelf.jacket -o out/shelf.pdf --debug out/shelf.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if output == "" {
				output = defaultOutput(input, "-proof.pdf")
			}
			eng := a.engine(filepath.Dir(input))
			sess, err := a.open(cmd.Context(), input, eng)
			if err != nil {
				return err
			}
			defer sess.Close()

			compositor := proof.NewCompositor(a.cfg.Proof, a.logger.Named("proof"))
			if debug != "" {
				snap, err := sess.Snapshot()
				if err != nil {
					return err
				}
				doc, err := compositor.Compose(snap)
				snap.Release()
				if err != nil {
					return fmt.Errorf("合成打样失败: %w", err)
				}
				if err := writeDebug(doc, debug); err != nil {
					return err
				}
			}

			pdf, err := sess.Export(cmd.Context(), &proof.Exporter{Compositor: compositor, Renderer: eng})
			if err != nil {
				return fmt.Errorf("生成打样失败: %w", err)
			}
			if err := writeOutput(output, pdf); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已生成打样：%s（%d 页）\n", output, len(sess.Books()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "PDF output path (default <job>-proof.pdf)")
	cmd.Flags().StringVar(&debug, "debug", "", "write the composed proof document as JSON")
	return cmd
}
