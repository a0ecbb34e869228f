package admission

import (
	"testing"

	"github.com/volatiletech/randomize"
)

func TestRenderFixtures(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		sep     string
		branch  string
		year    int
		seq     int
		want    string
		wantErr error
	}{
		{name: "no branch", format: FormatNoBranch, sep: "-", year: 2025, seq: 1, want: "ADM-2025-001"},
		{name: "branch start", format: FormatBranchStart, sep: "-", branch: "KB", year: 2025, seq: 3, want: "KB-ADM-2025-003"},
		{name: "branch middle", format: FormatBranchMiddle, sep: "-", branch: "KB", year: 2025, seq: 3, want: "ADM-KB-2025-003"},
		{name: "branch end", format: FormatBranchEnd, sep: "-", branch: "KB", year: 2025, seq: 3, want: "ADM-2025-003-KB"},
		{name: "slash separator", format: FormatNoBranch, sep: "/", year: 2024, seq: 12, want: "ADM/2024/012"},
		{name: "4-digit sequence is not truncated", format: FormatNoBranch, sep: "-", year: 2025, seq: 1234, want: "ADM-2025-1234"},
		{name: "missing branch", format: FormatBranchStart, sep: "-", year: 2025, seq: 1, wantErr: ErrBranchRequired},
		{name: "zero sequence", format: FormatNoBranch, sep: "-", year: 2025, seq: 0, wantErr: ErrBadSequence},
		{name: "3-digit year", format: FormatNoBranch, sep: "-", year: 999, seq: 1, wantErr: ErrBadYear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.format, tt.sep, tt.branch, tt.year, tt.seq)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("Render() error = %v; wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		sep    string
		admNo  string
	}{
		{name: "empty", format: FormatNoBranch, sep: "-", admNo: ""},
		{name: "wrong prefix", format: FormatNoBranch, sep: "-", admNo: "REG-2025-001"},
		{name: "missing part", format: FormatNoBranch, sep: "-", admNo: "ADM-2025"},
		{name: "extra part", format: FormatNoBranch, sep: "-", admNo: "ADM-2025-001-XX"},
		{name: "short sequence", format: FormatNoBranch, sep: "-", admNo: "ADM-2025-01"},
		{name: "non-numeric year", format: FormatNoBranch, sep: "-", admNo: "ADM-20XX-001"},
		{name: "non-numeric sequence", format: FormatNoBranch, sep: "-", admNo: "ADM-2025-0A1"},
		{name: "signed sequence", format: FormatNoBranch, sep: "-", admNo: "ADM-2025-+01"},
		{name: "zero sequence", format: FormatNoBranch, sep: "-", admNo: "ADM-2025-000"},
		{name: "wrong separator", format: FormatNoBranch, sep: "/", admNo: "ADM-2025-001"},
		{name: "branch where none expected", format: FormatNoBranch, sep: "-", admNo: "KB-ADM-2025-001"},
		{name: "branch in wrong position", format: FormatBranchStart, sep: "-", admNo: "ADM-KB-2025-001"},
		{name: "unknown format", format: Format("BOGUS"), sep: "-", admNo: "ADM-2025-001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := Parse(tt.format, tt.sep, tt.admNo); err == nil {
				t.Errorf("Parse(%q) accepted malformed input", tt.admNo)
			}
		})
	}
}

// parse(render(b, y, s)) == (b, y, s) for every format variant.
func TestRenderParseRoundTrip(t *testing.T) {
	seed := randomize.NewSeed()
	branches := []string{"KB", "NRB", "W3", "CAMPUS2"}
	seps := []string{"-", "/", "."}

	for _, format := range AllFormats {
		for i := 0; i < 25; i++ {
			sep := seps[int(seed.NextInt())%len(seps)]
			branch := ""
			if format.HasBranch() {
				branch = branches[int(seed.NextInt())%len(branches)]
			}
			year := 2000 + int(seed.NextInt())%100
			seq := 1 + int(seed.NextInt())%25000

			admNo, err := Render(format, sep, branch, year, seq)
			if err != nil {
				t.Fatalf("Render(%s, %q, %q, %d, %d) failed: %v", format, sep, branch, year, seq, err)
			}
			b, y, s, err := Parse(format, sep, admNo)
			if err != nil {
				t.Fatalf("Parse(%s, %q, %q) failed: %v", format, sep, admNo, err)
			}
			if b != branch || y != year || s != seq {
				t.Errorf("round trip %q: got (%q, %d, %d); want (%q, %d, %d)", admNo, b, y, s, branch, year, seq)
			}
		}
	}
}

func TestParseAccessors(t *testing.T) {
	admNo := "ADM-KB-2025-042"

	seq, err := ParseSequence(FormatBranchMiddle, "-", admNo)
	if err != nil || seq != 42 {
		t.Errorf("ParseSequence() = (%d, %v); want (42, nil)", seq, err)
	}
	year, err := ParseYear(FormatBranchMiddle, "-", admNo)
	if err != nil || year != 2025 {
		t.Errorf("ParseYear() = (%d, %v); want (2025, nil)", year, err)
	}
	branch, err := ParseBranch(FormatBranchMiddle, "-", admNo)
	if err != nil || branch != "KB" {
		t.Errorf("ParseBranch() = (%q, %v); want (KB, nil)", branch, err)
	}
}

func TestValidateNoBranch(t *testing.T) {
	tests := []struct {
		admNo string
		year  int
		want  bool
	}{
		{"ADM-2025-001", 2025, true},
		{"ADM-2025-1234", 2025, true},
		{"ADM-2024-001", 2025, false},
		{"KB-ADM-2025-001", 2025, false},
		{"ADM-2025", 2025, false},
		{"", 2025, false},
	}
	for _, tt := range tests {
		if got := ValidateNoBranch(tt.admNo, "-", tt.year); got != tt.want {
			t.Errorf("ValidateNoBranch(%q, %d) = %v; want %v", tt.admNo, tt.year, got, tt.want)
		}
	}
}
