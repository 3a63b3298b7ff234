package wheelname

import "testing"

func TestIsWheel(t *testing.T) {
	if !IsWheel("foo-1.0-py3-none-any.whl") {
		t.Error("expected .whl file to be a wheel")
	}
	if IsWheel("foo-1.0.tar.gz") {
		t.Error("expected tarball to not be a wheel")
	}
}

func TestVersionWheel(t *testing.T) {
	v, err := Version("pkg-1.2.3-py2-none-any.whl")
	if err != nil {
		t.Fatal(err)
	}
	if v != "1.2.3" {
		t.Errorf("got %q, want 1.2.3", v)
	}
}

func TestVersionSourceArchive(t *testing.T) {
	cases := map[string]string{
		"pkg-1.2.3.tar.gz":  "1.2.3",
		"pkg-1.2.3.tar.bz2": "1.2.3",
		"pkg-1.2.3.zip":     "1.2.3",
	}
	for filename, want := range cases {
		got, err := Version(filename)
		if err != nil {
			t.Fatalf("%s: %v", filename, err)
		}
		if got != want {
			t.Errorf("%s: got %q, want %q", filename, got, want)
		}
	}
}

func TestVersionUnparsable(t *testing.T) {
	if _, err := Version("nohyphen.whl"); err == nil {
		t.Error("expected an error for a filename with no version segment")
	}
}
