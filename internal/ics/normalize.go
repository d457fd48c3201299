package ics

import "strings"

// Preprocess repairs known malformed patterns in raw iCalendar text
// before structural parsing:
//
//  1. A trailing comma immediately before a line break followed by a
//     non-whitespace character is stripped (some servers emit date
//     lists with a dangling comma). Commas before a folded
//     continuation line (leading space or tab) are left alone.
//  2. RDATE/EXDATE property lines with an empty value are removed
//     entirely; they are syntactically valid to some exporters but
//     reject during parsing.
func Preprocess(body []byte) []byte {
	lines := strings.Split(string(body), "\n")

	for i := 0; i < len(lines)-1; i++ {
		line := strings.TrimSuffix(lines[i], "\r")
		if !strings.HasSuffix(line, ",") {
			continue
		}
		next := strings.TrimSuffix(lines[i+1], "\r")
		if next == "" || next[0] == ' ' || next[0] == '\t' {
			continue
		}
		cr := ""
		if strings.HasSuffix(lines[i], "\r") {
			cr = "\r"
		}
		lines[i] = strings.TrimSuffix(line, ",") + cr
	}

	out := lines[:0]
	for _, l := range lines {
		if isEmptyDateList(strings.TrimSuffix(l, "\r")) {
			continue
		}
		out = append(out, l)
	}

	return []byte(strings.Join(out, "\n"))
}

// isEmptyDateList reports whether line is an RDATE or EXDATE property
// with no value, e.g. "EXDATE:" or "RDATE;VALUE=DATE:".
func isEmptyDateList(line string) bool {
	if !strings.HasSuffix(line, ":") {
		return false
	}
	name := line[:len(line)-1]
	if i := strings.IndexByte(name, ';'); i >= 0 {
		name = name[:i]
	}
	return name == "RDATE" || name == "EXDATE"
}
