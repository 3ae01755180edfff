package domain

import "strings"

// ParseCourseCodes splits raw user input on commas and newlines into
// upper-cased, trimmed course codes. Empty tokens and duplicates are dropped;
// first-seen order is kept.
func ParseCourseCodes(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	codes := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		code := strings.ToUpper(strings.TrimSpace(f))
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

// JoinCourseCodes renders a watch list for display. ParseCourseCodes of the
// result yields the same list.
func JoinCourseCodes(codes []string) string {
	return strings.Join(codes, ", ")
}
