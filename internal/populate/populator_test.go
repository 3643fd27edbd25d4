package populate_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"configurator/internal/model"
	"configurator/internal/populate"
)

var outputCells = model.CellMapping{
	"C5": "tower_name",
	"D5": "evc1",
	"E5": "cvlan",
}

func TestPopulateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	templatePath := writeTemplate(t, dir, nil)
	outputPath := filepath.Join(dir, "out.xlsx")

	cfg := model.ResolvedConfig{
		"tower_name": "Site A",
		"evc1":       "VLXP12345",
		"cvlan":      "10",
	}

	p := populate.New("Configurator", outputCells, "")
	if err := p.Populate(templatePath, cfg, outputPath); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	// 用同一坐标映射读回，应得到原值
	out := openWorkbook(t, outputPath)
	defer out.Close()
	for cell, field := range outputCells {
		got, err := out.GetCellValue("Configurator", cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s) failed: %v", cell, err)
		}
		if got != cfg[field] {
			t.Fatalf("cell %s=%q, want %q", cell, got, cfg[field])
		}
	}
}

func TestPopulateDoesNotMutateTemplate(t *testing.T) {
	dir := t.TempDir()
	templatePath := writeTemplate(t, dir, map[string]string{"A1": "TEMPLATE"})

	cfg := model.ResolvedConfig{"tower_name": "Site A"}
	p := populate.New("Configurator", outputCells, "")
	if err := p.Populate(templatePath, cfg, filepath.Join(dir, "out.xlsx")); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	tmpl := openWorkbook(t, templatePath)
	defer tmpl.Close()
	if got, _ := tmpl.GetCellValue("Configurator", "C5"); got != "" {
		t.Fatalf("template C5=%q, want empty: template file was mutated", got)
	}
}

func TestPopulateAdvancesPastOccupiedRows(t *testing.T) {
	dir := t.TempDir()
	templatePath := writeTemplate(t, dir, map[string]string{"C5": "existing"})

	cfg := model.ResolvedConfig{"tower_name": "Site A", "evc1": "VLXP12345"}
	outputPath := filepath.Join(dir, "out.xlsx")
	p := populate.New("Configurator", outputCells, "")
	if err := p.Populate(templatePath, cfg, outputPath); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	out := openWorkbook(t, outputPath)
	defer out.Close()
	if got, _ := out.GetCellValue("Configurator", "C6"); got != "Site A" {
		t.Fatalf("C6=%q, want %q", got, "Site A")
	}
	if got, _ := out.GetCellValue("Configurator", "C5"); got != "existing" {
		t.Fatalf("C5=%q, want untouched %q", got, "existing")
	}
}

func TestPopulateAllAppendsRows(t *testing.T) {
	dir := t.TempDir()
	templatePath := writeTemplate(t, dir, nil)
	outputPath := filepath.Join(dir, "out.xlsx")

	configs := []model.ResolvedConfig{
		{"tower_name": "Site A", "evc1": "VLXP11111"},
		{"tower_name": "Site B", "evc1": "VLXP22222"},
	}

	p := populate.New("Configurator", outputCells, "")
	if err := p.PopulateAll(templatePath, configs, outputPath); err != nil {
		t.Fatalf("PopulateAll failed: %v", err)
	}

	out := openWorkbook(t, outputPath)
	defer out.Close()
	if got, _ := out.GetCellValue("Configurator", "C5"); got != "Site A" {
		t.Fatalf("C5=%q, want %q", got, "Site A")
	}
	if got, _ := out.GetCellValue("Configurator", "C6"); got != "Site B" {
		t.Fatalf("C6=%q, want %q", got, "Site B")
	}
}

func TestPopulateTemplateNotFound(t *testing.T) {
	dir := t.TempDir()
	p := populate.New("Configurator", outputCells, "")

	err := p.Populate(filepath.Join(dir, "absent.xlsx"), model.ResolvedConfig{}, filepath.Join(dir, "out.xlsx"))
	var notFound *model.TemplateNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err=%v, want TemplateNotFoundError", err)
	}
}

func TestPopulateLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	templatePath := writeTemplate(t, dir, nil)
	outDir := filepath.Join(dir, "out")
	outputPath := filepath.Join(outDir, "out.xlsx")

	p := populate.New("Configurator", outputCells, "")
	if err := p.Populate(templatePath, model.ResolvedConfig{"tower_name": "Site A"}, outputPath); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file %q left behind", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("output dir entries=%d, want 1", len(entries))
	}
}

func TestPopulateMissingSheet(t *testing.T) {
	dir := t.TempDir()
	templatePath := writeTemplate(t, dir, nil)

	p := populate.New("No Such Sheet", outputCells, "")
	if err := p.Populate(templatePath, model.ResolvedConfig{}, filepath.Join(dir, "out.xlsx")); err == nil {
		t.Fatal("Populate succeeded, want error for missing sheet")
	}
}

func writeTemplate(t *testing.T, dir string, cells map[string]string) string {
	t.Helper()

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "Configurator")
	for cell, value := range cells {
		if err := f.SetCellValue("Configurator", cell, value); err != nil {
			t.Fatalf("SetCellValue failed: %v", err)
		}
	}

	path := filepath.Join(dir, "template.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	return path
}

func openWorkbook(t *testing.T, path string) *excelize.File {
	t.Helper()

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	return f
}
