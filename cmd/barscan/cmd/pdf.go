package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/barscan/internal/pdf"
	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/spf13/cobra"
)

// pdfCmd represents the pdf command.
var pdfCmd = &cobra.Command{
	Use:   "pdf [file...]",
	Short: "Read EAN-13 barcodes from images embedded in PDF files",
	Long: `Read EAN-13 barcodes from the images embedded in PDF files.

The images of the selected pages are extracted and decoded one by one.
Works with scanned documents, delivery notes and labels saved as PDF.

Examples:
  barscan pdf delivery.pdf
  barscan pdf *.pdf --format json
  barscan pdf scan.pdf --pages 1-3,5 --password secret`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runPDF,
}

func init() {
	rootCmd.AddCommand(pdfCmd)

	pdfCmd.Flags().StringP("format", "f", "text", "output format (text, json, csv, yaml)")
	pdfCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	pdfCmd.Flags().String("pages", "", "page range to process (e.g., '1-5', '1,3,5')")
	pdfCmd.Flags().String("password", "", "user password for encrypted PDFs")
	pdfCmd.Flags().String("owner-password", "", "owner password for encrypted PDFs")
	pdfCmd.Flags().Bool("publish", true, "publish results when an MQTT broker is configured")
}

func runPDF(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := commandContext(cmd)

	pCfg, err := cfg.ToPipelineConfig()
	if err != nil {
		return err
	}
	pl, err := pipeline.NewBuilder().WithConfig(pCfg).Build()
	if err != nil {
		return fmt.Errorf("failed to build decode pipeline: %w", err)
	}

	procCfg := pdf.ProcessorConfig{Constraints: cfg.ToImageConstraints()}
	user, _ := cmd.Flags().GetString("password")
	owner, _ := cmd.Flags().GetString("owner-password")
	if user != "" || owner != "" {
		procCfg.Credentials = &pdf.PasswordCredentials{UserPassword: user, OwnerPassword: owner}
	}

	pages, _ := cmd.Flags().GetString("pages")
	docs, err := pdf.NewProcessor(pl, procCfg).ProcessFiles(ctx, args, pages)
	if err != nil {
		if pdf.IsPasswordError(err) {
			return fmt.Errorf("%w (use --password)", err)
		}
		return err
	}

	var results []*pipeline.Result
	for _, doc := range docs {
		slog.Debug("PDF decoded", "file", doc.Filename, "pages", doc.TotalPages, "numbers", doc.Numbers())
		for _, page := range doc.Pages {
			for _, img := range page.Images {
				if img.Error != "" {
					slog.Warn("Embedded image failed", "file", doc.Filename,
						"page", page.PageNumber, "image", img.ImageIndex, "error", img.Error)
				}
			}
		}
		results = append(results, doc.Results()...)
	}

	out, err := pipeline.Format(results, stringFlag(cmd, "format", cfg.Output.Format))
	if err != nil {
		return err
	}
	if file := stringFlag(cmd, "output", cfg.Output.File); file != "" {
		if err := os.WriteFile(file, []byte(out+"\n"), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
	} else {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)
	}

	if doPublish, _ := cmd.Flags().GetBool("publish"); doPublish {
		if err := publishResults(ctx, cfg, results); err != nil {
			slog.Warn("Publishing results failed", "error", err)
		}
	}
	return nil
}
