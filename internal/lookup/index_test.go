package lookup_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"configurator/internal/lookup"
	"configurator/internal/model"
)

var testColumns = lookup.Columns{
	EVC:       "EVC ID",
	UNI:       "A End (U)NI ID",
	CVLAN:     "CVLAN",
	Bandwidth: "Bandwidth",
	Tower:     "Tower Name",
}

var testUNIKeys = []string{"KGGS", "KFGS", "KSGS", "KTGS"}

func TestBuildCircuitIndex(t *testing.T) {
	idx := buildIndex(t,
		"Site A,VLXP12345,KGGS99,10,1G",
		"Site A,VLXP12345,KGGS99,20,1G", // 同键重复，保留到达顺序
		"Site B,VLXP67890,KFGS01,30,10G",
		"Site C,OTHER123,NOPE456,40,1G", // 未命中任何唯一性键
	)

	evc := idx.LookupEVC("vlxp12345")
	if len(evc) != 2 {
		t.Fatalf("EVC matches=%d, want 2", len(evc))
	}
	if evc[0].Row >= evc[1].Row {
		t.Fatalf("duplicate records out of arrival order: %d, %d", evc[0].Row, evc[1].Row)
	}

	uni := idx.LookupUNI("KFGS01")
	if len(uni) != 1 || uni[0].TowerName != "Site B" {
		t.Fatalf("UNI lookup=%+v, want one Site B record", uni)
	}

	if idx.Excluded() != 1 {
		t.Fatalf("excluded=%d, want 1", idx.Excluded())
	}
	if got := idx.TowerRowCount("site a"); got != 2 {
		t.Fatalf("TowerRowCount=%d, want 2", got)
	}
}

func TestBuildCircuitIndexLocatesHeaderRow(t *testing.T) {
	// 导出文件列头前带标题与生成时间行
	content := "Circuit Export,,,,\nGenerated 2026-08-01,,,,\n" +
		"Tower Name,EVC ID,A End (U)NI ID,CVLAN,Bandwidth\n" +
		"Site A,VLXP12345,KGGS99,10,1G\n"
	path := filepath.Join(t.TempDir(), "circuits.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cols := testColumns
	cols.UNITargetHeader = "A End (U)NI ID"
	cols.EVCTargetHeader = "EVC ID"

	idx, err := lookup.BuildCircuitIndex(path, cols, testUNIKeys, "VLXP", testLogger())
	if err != nil {
		t.Fatalf("BuildCircuitIndex failed: %v", err)
	}
	if got := idx.LookupUNI("KGGS99"); len(got) != 1 || got[0].TowerName != "Site A" {
		t.Fatalf("UNI lookup=%+v, want one Site A record", got)
	}
}

func TestBuildCircuitIndexHeaderLabelFallback(t *testing.T) {
	// 标签未命中任何行时回退到第一行作为列头，数据行不丢失
	cols := testColumns
	cols.UNITargetHeader = "No Such Label"

	path := writeCircuitCSV(t,
		"Site A,VLXP12345,KGGS99,10,1G",
		"Site B,VLXP67890,KFGS01,20,1G",
	)
	idx, err := lookup.BuildCircuitIndex(path, cols, testUNIKeys, "VLXP", testLogger())
	if err != nil {
		t.Fatalf("BuildCircuitIndex failed: %v", err)
	}
	if len(idx.LookupEVC("VLXP12345")) != 1 || len(idx.LookupEVC("VLXP67890")) != 1 {
		t.Fatalf("fallback lost data rows")
	}
}

func TestBuildCircuitIndexMissingColumn(t *testing.T) {
	cols := testColumns
	cols.CVLAN = "No Such Column"

	path := writeCircuitCSV(t, "Site A,VLXP12345,KGGS99,10,1G")
	_, err := lookup.BuildCircuitIndex(path, cols, testUNIKeys, "VLXP", testLogger())

	var loadErr *model.DatasetLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("err=%v, want DatasetLoadError", err)
	}
}

func TestBuildCircuitIndexMissingFile(t *testing.T) {
	_, err := lookup.BuildCircuitIndex(
		filepath.Join(t.TempDir(), "absent.csv"),
		testColumns, testUNIKeys, "VLXP", testLogger())

	var loadErr *model.DatasetLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("err=%v, want DatasetLoadError", err)
	}
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func writeCircuitCSV(t *testing.T, rows ...string) string {
	t.Helper()

	content := "Tower Name,EVC ID,A End (U)NI ID,CVLAN,Bandwidth\n" + strings.Join(rows, "\n") + "\n"
	path := filepath.Join(t.TempDir(), "circuits.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func buildIndex(t *testing.T, rows ...string) *lookup.CircuitIndex {
	t.Helper()

	idx, err := lookup.BuildCircuitIndex(writeCircuitCSV(t, rows...), testColumns, testUNIKeys, "VLXP", testLogger())
	if err != nil {
		t.Fatalf("BuildCircuitIndex failed: %v", err)
	}
	return idx
}
