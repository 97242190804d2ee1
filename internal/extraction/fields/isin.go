package fields

import "regexp"

// isinPattern matches the ISO 6166 shape: two letter country code, nine
// alphanumeric characters, one check digit.
var isinPattern = regexp.MustCompile(`\b[A-Z]{2}[A-Z0-9]{9}[0-9]\b`)

// FindISINs returns all non-overlapping ISIN candidates in text, in order of
// appearance, with their byte offsets.
func FindISINs(text string) []ISINMatch {
	locs := isinPattern.FindAllStringIndex(text, -1)
	matches := make([]ISINMatch, 0, len(locs))
	for _, loc := range locs {
		matches = append(matches, ISINMatch{
			ISIN:  text[loc[0]:loc[1]],
			Start: loc[0],
			End:   loc[1],
		})
	}
	return matches
}

// ISINMatch is one ISIN occurrence in the source text.
type ISINMatch struct {
	ISIN  string
	Start int
	End   int
}

// ValidChecksum verifies the ISO 6166 check digit: letters expand to two
// digits (A=10 .. Z=35), then the Luhn algorithm runs over the expanded
// string. Records with a failing check digit are flagged, not dropped.
func ValidChecksum(isin string) bool {
	if len(isin) != 12 {
		return false
	}

	var digits []int
	for _, r := range isin {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r >= 'A' && r <= 'Z':
			v := int(r-'A') + 10
			digits = append(digits, v/10, v%10)
		default:
			return false
		}
	}

	sum := 0
	double := true
	for i := len(digits) - 2; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	check := (10 - sum%10) % 10
	return check == digits[len(digits)-1]
}
