package maestro

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/curdling/curdling"
)

func fileOrFatal(t *testing.T, m *Maestro, raw, parent string) string {
	t.Helper()
	req, err := m.FileRequirement(context.Background(), raw, parent)
	if err != nil {
		t.Fatalf("FileRequirement(%q): %v", raw, err)
	}
	return req.Raw
}

func TestFileRequirementDeduplicatesAndAccumulatesParents(t *testing.T) {
	m := New(true)
	a := fileOrFatal(t, m, "foo (>= 1.0)", Root)
	b := fileOrFatal(t, m, "foo (>= 1.0)", "bar (>= 1.0)")
	if a != b {
		t.Fatalf("canonical keys differ: %q vs %q", a, b)
	}
	ancestors, err := m.Ancestors(a)
	if err != nil {
		t.Fatal(err)
	}
	if len(ancestors) != 2 || ancestors[0] != Root || ancestors[1] != "bar (>= 1.0)" {
		t.Errorf("unexpected ancestors: %v", ancestors)
	}
}

func TestSetDataWriteOnce(t *testing.T) {
	m := New(true)
	req := fileOrFatal(t, m, "foo", Root)

	if err := m.SetData(req, curdling.FieldURL, "http://example/simple"); err != nil {
		t.Fatal(err)
	}
	err := m.SetData(req, curdling.FieldURL, "http://other/simple")
	if !errors.Is(err, curdling.ErrDataSlotInUse) {
		t.Errorf("expected ErrDataSlotInUse, got %v", err)
	}
}

func TestSetDataWheelFieldAccumulates(t *testing.T) {
	m := New(true)
	req := fileOrFatal(t, m, "foo (>= 1.0)", Root)

	if err := m.SetData(req, curdling.FieldWheel, "foo-1.0.whl"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetData(req, curdling.FieldWheel, "foo-2.0.whl"); err != nil {
		t.Fatalf("second wheel write should not fail: %v", err)
	}
	// A duplicate write of the same filename is a silent no-op, not an
	// error and not a second entry.
	if err := m.SetData(req, curdling.FieldWheel, "foo-2.0.whl"); err != nil {
		t.Fatalf("duplicate wheel write should not fail: %v", err)
	}

	wheels, err := m.Wheels(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(wheels) != 2 {
		t.Fatalf("got %d wheels, want 2: %v", len(wheels), wheels)
	}
}

func TestSetDataUnknownField(t *testing.T) {
	m := New(true)
	req := fileOrFatal(t, m, "foo", Root)
	err := m.SetData(req, curdling.DataField("bogus"), "x")
	if !errors.Is(err, curdling.ErrBadField) {
		t.Errorf("expected ErrBadField, got %v", err)
	}
}

func TestSetDataUnknownRequirement(t *testing.T) {
	m := New(true)
	err := m.SetData("nope", curdling.FieldURL, "x")
	if !errors.Is(err, curdling.ErrUnknownRequirement) {
		t.Errorf("expected ErrUnknownRequirement, got %v", err)
	}
}

func TestConcurrentWheelWritesNeverRaceIntoDataSlotInUse(t *testing.T) {
	m := New(true)
	req := fileOrFatal(t, m, "foo (>= 1.0)", Root)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- m.SetData(req, curdling.FieldWheel, "foo-1.0-"+string(rune('a'+i%26))+".whl")
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error from concurrent wheel write: %v", err)
		}
	}
}

func TestFilterByPending(t *testing.T) {
	m := New(true)
	fileOrFatal(t, m, "foo", Root)
	pending := m.FilterBy(curdling.Pending)
	if len(pending) != 1 {
		t.Fatalf("got %v, want 1 pending requirement", pending)
	}
}

func TestFilterByStatusBit(t *testing.T) {
	m := New(true)
	req := fileOrFatal(t, m, "foo", Root)
	if err := m.AddStatus(req, curdling.Found); err != nil {
		t.Fatal(err)
	}
	found := m.FilterBy(curdling.Found)
	if len(found) != 1 || found[0] != req {
		t.Fatalf("got %v, want [%q]", found, req)
	}
	if pending := m.FilterBy(curdling.Pending); len(pending) != 0 {
		t.Errorf("expected no pending requirements, got %v", pending)
	}
}

func TestIsPrimaryRequirement(t *testing.T) {
	m := New(true)
	primary := fileOrFatal(t, m, "foo (>= 1.0)", Root)
	dep := fileOrFatal(t, m, "bar (>= 1.0)", "foo (>= 1.0)")

	if ok, err := m.IsPrimaryRequirement(primary); err != nil || !ok {
		t.Errorf("expected %q to be primary, got ok=%v err=%v", primary, ok, err)
	}
	if ok, err := m.IsPrimaryRequirement(dep); err != nil || ok {
		t.Errorf("expected %q to be non-primary, got ok=%v err=%v", dep, ok, err)
	}
}

func TestAvailableVersionsSortedDescendingDeduplicated(t *testing.T) {
	m := New(true)
	req := fileOrFatal(t, m, "foo (>= 1.0)", Root)
	for _, w := range []string{"foo-1.0.whl", "foo-2.0.whl", "foo-1.5.whl", "foo-2.0.tar.gz"} {
		if err := m.SetData(req, curdling.FieldWheel, w); err != nil {
			t.Fatal(err)
		}
	}
	got := m.AvailableVersions("foo")
	want := []string{"2.0", "1.5", "1.0"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAvailableVersionsExcludesPrereleaseWhenDisabled(t *testing.T) {
	m := New(false)
	req := fileOrFatal(t, m, "foo (>= 1.0)", Root)
	for _, w := range []string{"foo-1.0.whl", "foo-2.0rc1.whl"} {
		if err := m.SetData(req, curdling.FieldWheel, w); err != nil {
			t.Fatal(err)
		}
	}
	got := m.AvailableVersions("foo")
	if len(got) != 1 || got[0] != "1.0" {
		t.Fatalf("got %v, want [1.0]", got)
	}
}

func TestMatchingVersions(t *testing.T) {
	m := New(true)
	req := fileOrFatal(t, m, "foo (>= 1.0, < 2.0)", Root)
	for _, w := range []string{"foo-0.9.whl", "foo-1.0.whl", "foo-1.5.whl", "foo-2.0.whl"} {
		if err := m.SetData(req, curdling.FieldWheel, w); err != nil {
			t.Fatal(err)
		}
	}
	got, err := m.MatchingVersions(req)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1.5", "1.0"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBrokenVersionsTrackedPerRequirement(t *testing.T) {
	m := New(true)
	a := fileOrFatal(t, m, "foo (>= 1.0)", Root)
	fileOrFatal(t, m, "foo (< 2.0)", "bar")

	if err := m.SetData(a, curdling.FieldException, "build failed"); err != nil {
		t.Fatal(err)
	}
	broken := m.BrokenVersions("foo")
	if len(broken) != 1 || broken[0] != a {
		t.Fatalf("got %v, want [%q]", broken, a)
	}
}
