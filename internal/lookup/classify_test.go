package lookup_test

import (
	"testing"

	"configurator/internal/lookup"
	"configurator/internal/model"
)

func TestMatchesKey(t *testing.T) {
	cases := []struct {
		id   string
		keys []string
		want bool
	}{
		{"KGGS99", []string{"KGGS", "KFGS"}, true},
		{"kggs99", []string{"KGGS"}, true},
		{"31.KGGS.123456..TMO", []string{"KGGS"}, true},
		{"VLXP12345", []string{"VLXP"}, true},
		{"2.VLXP.000123.", []string{"VLXP"}, true},
		{"XXXX99", []string{"KGGS", "KFGS"}, false},
		{"", []string{"KGGS"}, false},
		{"KGGS99", nil, false},
	}

	for _, c := range cases {
		if got := lookup.MatchesKey(c.id, c.keys...); got != c.want {
			t.Fatalf("MatchesKey(%q, %v)=%v, want %v", c.id, c.keys, got, c.want)
		}
	}
}

func TestClassify(t *testing.T) {
	uniKeys := []string{"KGGS", "KFGS"}

	dual := &model.CircuitRecord{EVCID: "VLXP12345", UNIID: "KGGS99"}
	if class := lookup.Classify(dual, uniKeys, "VLXP"); !class.Has(lookup.UNIRecord) || !class.Has(lookup.EVCRecord) {
		t.Fatalf("dual record class=%v, want UNI|EVC", class)
	}

	uniOnly := &model.CircuitRecord{EVCID: "OTHER1", UNIID: "KFGS01"}
	if class := lookup.Classify(uniOnly, uniKeys, "VLXP"); !class.Has(lookup.UNIRecord) || class.Has(lookup.EVCRecord) {
		t.Fatalf("uni-only record class=%v, want UNI", class)
	}

	none := &model.CircuitRecord{EVCID: "ABCD1", UNIID: "EFGH2"}
	if class := lookup.Classify(none, uniKeys, "VLXP"); class != lookup.Unclassified {
		t.Fatalf("unmatched record class=%v, want Unclassified", class)
	}
}
