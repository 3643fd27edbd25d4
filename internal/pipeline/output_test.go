package pipeline

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"configurator/internal/model"
)

// flakyWriter 前 failures 次调用返回 err，之后成功
type flakyWriter struct {
	calls    int
	failures int
	err      error
}

func (w *flakyWriter) Populate(templatePath string, cfg model.ResolvedConfig, outputPath string) error {
	w.calls++
	if w.calls <= w.failures {
		return w.err
	}
	return nil
}

func (w *flakyWriter) PopulateAll(templatePath string, configs []model.ResolvedConfig, outputPath string) error {
	return nil
}

func TestPopulateWithRetryRecovers(t *testing.T) {
	writer := &flakyWriter{failures: 1, err: &model.WriteError{Path: "out.xlsx", Err: errors.New("disk full")}}
	c := &Coordinator{logger: zap.NewNop()}
	rc := &runContext{populator: writer}

	if err := c.populateWithRetry(rc, model.ResolvedConfig{}, "out.xlsx"); err != nil {
		t.Fatalf("populateWithRetry failed: %v", err)
	}
	if writer.calls != 2 {
		t.Fatalf("calls=%d, want 2 (first attempt plus one retry)", writer.calls)
	}
}

func TestPopulateWithRetrySurfacesSecondFailure(t *testing.T) {
	writer := &flakyWriter{failures: 2, err: &model.WriteError{Path: "out.xlsx", Err: errors.New("disk full")}}
	c := &Coordinator{logger: zap.NewNop()}
	rc := &runContext{populator: writer}

	err := c.populateWithRetry(rc, model.ResolvedConfig{}, "out.xlsx")
	var writeErr *model.WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("err=%v, want WriteError", err)
	}
	if writer.calls != 2 {
		t.Fatalf("calls=%d, want exactly one retry", writer.calls)
	}
}

func TestPopulateWithRetrySkipsOtherErrors(t *testing.T) {
	writer := &flakyWriter{failures: 2, err: errors.New("template has no sheet")}
	c := &Coordinator{logger: zap.NewNop()}
	rc := &runContext{populator: writer}

	if err := c.populateWithRetry(rc, model.ResolvedConfig{}, "out.xlsx"); err == nil {
		t.Fatal("populateWithRetry succeeded, want error")
	}
	if writer.calls != 1 {
		t.Fatalf("calls=%d, non-WriteError must not be retried", writer.calls)
	}
}

func TestReserveOutputName(t *testing.T) {
	rc := &runContext{}

	first := rc.reserveOutputName(model.SiteClassNoType, "Site_A")
	second := rc.reserveOutputName(model.SiteClassNoType, "Site_A")
	third := rc.reserveOutputName(model.SiteClassNoType, "Site_A")

	if first != "Site_A" {
		t.Fatalf("first=%q, want unsuffixed Site_A", first)
	}
	if second == first || third == second || third == first {
		t.Fatalf("names=%q,%q,%q, want all distinct", first, second, third)
	}

	// 不同分类目录互不影响
	if other := rc.reserveOutputName(model.SiteClassFdisc, "Site_A"); other != "Site_A" {
		t.Fatalf("other-class name=%q, want unsuffixed Site_A", other)
	}
}

func TestSanitizedNameCollisionGetsDistinctPaths(t *testing.T) {
	a := sanitizeFileName("Site/A")
	b := sanitizeFileName("Site A")
	if a != b {
		t.Fatalf("sanitized names %q and %q, expected collision for this case", a, b)
	}

	rc := &runContext{}
	n1 := rc.reserveOutputName(model.SiteClassNoType, a)
	n2 := rc.reserveOutputName(model.SiteClassNoType, b)
	if n1 == n2 {
		t.Fatalf("both sites reserved %q, want distinct output names", n1)
	}
}
