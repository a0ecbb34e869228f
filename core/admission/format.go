package admission

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Format determines how a school's admission numbers are laid out.
// It is fixed at school provisioning: previously issued numbers embed it.
type Format string

const (
	FormatNoBranch     Format = "NO_BRANCH"
	FormatBranchStart  Format = "BRANCH_PREFIX_START"
	FormatBranchMiddle Format = "BRANCH_PREFIX_MIDDLE"
	FormatBranchEnd    Format = "BRANCH_PREFIX_END"

	// numberPrefix is the literal marker embedded in every admission number.
	numberPrefix = "ADM"

	// minSeqDigits is the zero-padded width of the sequence part; larger
	// sequences keep all their digits.
	minSeqDigits = 3
)

var AllFormats = []Format{FormatNoBranch, FormatBranchStart, FormatBranchMiddle, FormatBranchEnd}

var (
	// errors
	ErrBadAdmissionNo = errors.New("malformed admission number")
	ErrBranchRequired = errors.New("branch code is required for this format")
	ErrBadYear        = errors.New("academic year out of range")
	ErrBadSequence    = errors.New("sequence number must be positive")
)

func (f Format) Valid() bool {
	switch f {
	case FormatNoBranch, FormatBranchStart, FormatBranchMiddle, FormatBranchEnd:
		return true
	}
	return false
}

// HasBranch reports whether the format embeds a branch code.
func (f Format) HasBranch() bool {
	return f.Valid() && f != FormatNoBranch
}

// Render builds the admission number for (branch, year, seq) per the school's
// format and separator. Parse* are exact inverses for every valid input.
func Render(f Format, sep, branch string, year, seq int) (string, error) {
	if !f.Valid() {
		return "", errors.Wrapf(ErrBadAdmissionNo, "unknown format %q", f)
	}
	if year < 1000 || year > 9999 {
		return "", ErrBadYear
	}
	if seq < 1 {
		return "", ErrBadSequence
	}
	if f.HasBranch() {
		if branch == "" {
			return "", ErrBranchRequired
		}
		if strings.Contains(branch, sep) {
			return "", errors.Wrapf(ErrBadAdmissionNo, "branch code %q contains separator", branch)
		}
	}

	seqStr := fmt.Sprintf("%0*d", minSeqDigits, seq)
	yearStr := strconv.Itoa(year)

	switch f {
	case FormatBranchStart:
		return strings.Join([]string{branch, numberPrefix, yearStr, seqStr}, sep), nil
	case FormatBranchMiddle:
		return strings.Join([]string{numberPrefix, branch, yearStr, seqStr}, sep), nil
	case FormatBranchEnd:
		return strings.Join([]string{numberPrefix, yearStr, seqStr, branch}, sep), nil
	default: // FormatNoBranch
		return strings.Join([]string{numberPrefix, yearStr, seqStr}, sep), nil
	}
}

// Parse splits an admission number back into its (branch, year, seq)
// components. Malformed input is rejected, never guessed at: a silently wrong
// parse would corrupt reporting and counter repair.
func Parse(f Format, sep, admNo string) (branch string, year, seq int, err error) {
	if !f.Valid() {
		return "", 0, 0, errors.Wrapf(ErrBadAdmissionNo, "unknown format %q", f)
	}
	if sep == "" || admNo == "" {
		return "", 0, 0, ErrBadAdmissionNo
	}

	parts := strings.Split(admNo, sep)
	var prefix, yearStr, seqStr string

	switch f {
	case FormatNoBranch:
		if len(parts) != 3 {
			return "", 0, 0, ErrBadAdmissionNo
		}
		prefix, yearStr, seqStr = parts[0], parts[1], parts[2]
	case FormatBranchStart:
		if len(parts) != 4 {
			return "", 0, 0, ErrBadAdmissionNo
		}
		branch, prefix, yearStr, seqStr = parts[0], parts[1], parts[2], parts[3]
	case FormatBranchMiddle:
		if len(parts) != 4 {
			return "", 0, 0, ErrBadAdmissionNo
		}
		prefix, branch, yearStr, seqStr = parts[0], parts[1], parts[2], parts[3]
	case FormatBranchEnd:
		if len(parts) != 4 {
			return "", 0, 0, ErrBadAdmissionNo
		}
		prefix, yearStr, seqStr, branch = parts[0], parts[1], parts[2], parts[3]
	}

	if prefix != numberPrefix {
		return "", 0, 0, ErrBadAdmissionNo
	}
	if f.HasBranch() && branch == "" {
		return "", 0, 0, ErrBadAdmissionNo
	}
	if year, err = parseDigits(yearStr, 4, 4); err != nil {
		return "", 0, 0, err
	}
	if seq, err = parseDigits(seqStr, minSeqDigits, 0); err != nil {
		return "", 0, 0, err
	}
	if seq < 1 {
		return "", 0, 0, ErrBadAdmissionNo
	}
	return branch, year, seq, nil
}

// ParseSequence extracts the sequence number embedded in an admission number.
func ParseSequence(f Format, sep, admNo string) (int, error) {
	_, _, seq, err := Parse(f, sep, admNo)
	return seq, err
}

// ParseYear extracts the academic year embedded in an admission number.
func ParseYear(f Format, sep, admNo string) (int, error) {
	_, year, _, err := Parse(f, sep, admNo)
	return year, err
}

// ParseBranch extracts the branch code embedded in an admission number;
// empty for FormatNoBranch.
func ParseBranch(f Format, sep, admNo string) (string, error) {
	branch, _, _, err := Parse(f, sep, admNo)
	return branch, err
}

// ValidateNoBranch is a lightweight legacy-format sanity check: it reports
// whether admNo matches the NO_BRANCH shape for the given year. Distinct from
// full parsing on purpose.
func ValidateNoBranch(admNo, sep string, year int) bool {
	_, y, _, err := Parse(FormatNoBranch, sep, admNo)
	return err == nil && y == year
}

// parseDigits parses an all-digit string of len in [min, max] (max 0 = unbounded).
func parseDigits(s string, min, max int) (int, error) {
	if len(s) < min || (max > 0 && len(s) > max) {
		return 0, ErrBadAdmissionNo
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrBadAdmissionNo
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrBadAdmissionNo
	}
	return n, nil
}
