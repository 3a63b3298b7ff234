package legacyversion

import "testing"

type matchTestcase struct {
	In    string
	Match bool
}

type rangeTestcase struct {
	Name  string
	In    string
	Match []matchTestcase
}

var rangett = []rangeTestcase{
	{
		Name: "Simple",
		In:   ">= 1.0",
		Match: []matchTestcase{
			{In: "0.9", Match: false},
			{In: "1.0", Match: true},
			{In: "2.0", Match: true},
		},
	},
	{
		Name: "Intersection",
		In:   ">= 1.0, <= 2.0",
		Match: []matchTestcase{
			{In: "0.9", Match: false},
			{In: "1.0", Match: true},
			{In: "1.5", Match: true},
			{In: "2.0", Match: true},
			{In: "2.1", Match: false},
		},
	},
	{
		Name: "Conflict",
		In:   "< 1.0, >= 2.0",
		Match: []matchTestcase{
			{In: "0.9", Match: false},
			{In: "2.0", Match: false},
		},
	},
	{
		Name: "Exclusion",
		In:   ">= 1.0, != 1.5",
		Match: []matchTestcase{
			{In: "1.0", Match: true},
			{In: "1.5", Match: false},
			{In: "2.0", Match: true},
		},
	},
}

func TestParseConstraints(t *testing.T) {
	for _, tc := range rangett {
		t.Run(tc.Name, func(t *testing.T) {
			cs, err := ParseConstraints(tc.In)
			if err != nil {
				t.Fatal(err)
			}
			for _, m := range tc.Match {
				v, err := Parse(m.In)
				if err != nil {
					t.Fatal(err)
				}
				if got := cs.Matches(v); got != m.Match {
					t.Errorf("Matches(%s) = %v, want %v", m.In, got, m.Match)
				}
			}
		})
	}
}

func TestParseConstraintsEmpty(t *testing.T) {
	cs, err := ParseConstraints("")
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 0 {
		t.Errorf("expected empty constraint set, got %v", cs)
	}
	v, err := Parse("1.0")
	if err != nil {
		t.Fatal(err)
	}
	if !cs.Matches(v) {
		t.Error("expected empty constraint set to match everything")
	}
}

func TestParseConstraintsInvalid(t *testing.T) {
	tt := []string{"1.0", "=>1.0", "== abc"}
	for _, in := range tt {
		if _, err := ParseConstraints(in); err == nil {
			t.Errorf("ParseConstraints(%q): expected error, got none", in)
		}
	}
}
