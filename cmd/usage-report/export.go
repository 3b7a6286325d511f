package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"usage-analytics/internal/pipeline"
	"usage-analytics/pkg/utils"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the filtered company table to the output directory",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var exportFlags struct {
	outputDir string
}

func init() {
	exportCmd.Flags().StringVarP(&exportFlags.outputDir, "output-dir", "o", "", "Output directory (overrides config)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	r, err := loadReport(cmd)
	if err != nil {
		return err
	}
	dir := r.cfg.OutputDir
	if exportFlags.outputDir != "" {
		dir = exportFlags.outputDir
	}
	format := pipeline.FormatCSV
	if jsonOutput() {
		format = pipeline.FormatJSON
	}

	rows := pipeline.CompanyTable(r.view.Companies, r.now)
	result := pipeline.ExportCompanies(utils.NewExportDir(dir), uuid.New().String(), rows, r.view.NodeCategories, format)
	if !result.Success {
		return fmt.Errorf("export failed: %s", result.Error)
	}
	fmt.Printf("✅ %d companies written to %s (%d bytes)\n", result.RecordCount, result.Path, result.Bytes)
	return nil
}
