package lookup_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"configurator/internal/lookup"
	"configurator/internal/model"
)

var testSiteColumns = lookup.SiteColumns{
	Site:    "Site Name",
	Address: "Address",
	City:    "City",
	State:   "State",
}

func TestResolveAddress(t *testing.T) {
	idx := buildAddressIndex(t, [][]string{
		{"Site Name", "Address", "City", "State"},
		{"Site A", "1 Main St", "Bellevue", "WA"},
		{"Site B", "2 Oak Ave", "Tacoma", "WA"},
	})

	// 大小写与空白不敏感
	fields, warnings := lookup.ResolveAddress("  site a ", idx)
	if len(warnings) != 0 {
		t.Fatalf("warnings=%v, want none", warnings)
	}
	if fields.Address != "1 Main St" || fields.City != "Bellevue" || fields.State != "WA" {
		t.Fatalf("fields=%+v, want Site A address", fields)
	}
}

func TestResolveAddressSiteNotFound(t *testing.T) {
	idx := buildAddressIndex(t, [][]string{
		{"Site Name", "Address", "City", "State"},
		{"Site A", "1 Main St", "Bellevue", "WA"},
	})

	fields, warnings := lookup.ResolveAddress("Site Z", idx)
	if fields != (model.AddressFields{}) {
		t.Fatalf("fields=%+v, want blank", fields)
	}
	if len(warnings) != 1 || warnings[0].Kind != model.WarnSiteNotFound {
		t.Fatalf("warnings=%v, want one SiteNotFound", warnings)
	}
}

func TestBuildAddressIndexMissingSiteColumn(t *testing.T) {
	path := writeAddressWorkbook(t, [][]string{
		{"Wrong Header", "Address", "City", "State"},
		{"Site A", "1 Main St", "Bellevue", "WA"},
	})

	_, err := lookup.BuildAddressIndex(path, "", testSiteColumns, testLogger())
	var loadErr *model.DatasetLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("err=%v, want DatasetLoadError", err)
	}
}

func writeAddressWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()

	f := excelize.NewFile()
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName failed: %v", err)
			}
			if err := f.SetCellValue("Sheet1", cell, value); err != nil {
				t.Fatalf("SetCellValue failed: %v", err)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "sites.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	return path
}

func buildAddressIndex(t *testing.T, rows [][]string) *lookup.AddressIndex {
	t.Helper()

	idx, err := lookup.BuildAddressIndex(writeAddressWorkbook(t, rows), "", testSiteColumns, testLogger())
	if err != nil {
		t.Fatalf("BuildAddressIndex failed: %v", err)
	}
	return idx
}
