package client

import (
	"errors"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"10.1-12", "10.1.0-12", false},
		{"10.1.2-4", "10.1.2-4", false},
		{"14.0", "14.0.0", false},
		{"14.0.3", "14.0.3", false},
		{"garbage", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseVersion(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && v.String() != tt.want {
				t.Errorf("ParseVersion(%q) = %s, want %s", tt.in, v, tt.want)
			}
		})
	}
}

func TestCheckVersion(t *testing.T) {
	required, _ := ParseVersion("10.1-12")

	if err := checkVersion("10.1-12", required, "10.1-12"); err != nil {
		t.Errorf("equal version rejected: %v", err)
	}
	for _, newer := range []string{"11.0", "10.1-13", "10.1.1", "10.1.5", "10.1.2-4"} {
		if err := checkVersion(newer, required, "10.1-12"); err != nil {
			t.Errorf("newer version %s rejected: %v", newer, err)
		}
	}

	err := checkVersion("10.1-3", required, "10.1-12")
	var verr *VersionError
	if !errors.As(err, &verr) {
		t.Fatalf("expected VersionError, got %v", err)
	}
	if verr.Actual != "10.1-3" || verr.Required != "10.1-12" {
		t.Errorf("VersionError = %+v", verr)
	}

	if err := checkVersion("dev", required, "10.1-12"); err == nil || errors.As(err, &verr) {
		t.Errorf("unparsable version should be a plain error, got %v", err)
	}
}

func TestVersion_Compare(t *testing.T) {
	// Ascending order; a build suffix sorts after its release and before
	// the next patch.
	ordered := []string{"10.1", "10.1-3", "10.1-12", "10.1.1", "10.1.2", "10.1.2-4", "10.1.3", "12.0", "12.0-5", "12.0.1"}
	for i := range ordered {
		for j := range ordered {
			a, err := ParseVersion(ordered[i])
			if err != nil {
				t.Fatal(err)
			}
			b, err := ParseVersion(ordered[j])
			if err != nil {
				t.Fatal(err)
			}
			want := 0
			if i < j {
				want = -1
			} else if i > j {
				want = 1
			}
			if got := a.Compare(b); got != want {
				t.Errorf("Compare(%s, %s) = %d, want %d", ordered[i], ordered[j], got, want)
			}
		}
	}
}

func TestCheckVersion_BuildSuffixMinimum(t *testing.T) {
	required, err := ParseVersion("12.0-5")
	if err != nil {
		t.Fatal(err)
	}
	if err := checkVersion("12.0.1", required, "12.0-5"); err != nil {
		t.Errorf("12.0.1 should satisfy 12.0-5: %v", err)
	}
	var verr *VersionError
	if err := checkVersion("12.0", required, "12.0-5"); !errors.As(err, &verr) {
		t.Errorf("12.0 should not satisfy 12.0-5, got %v", err)
	}
}
