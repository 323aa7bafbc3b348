package paynow

type field struct {
	tag   string
	value string
}

// scan is the result of walking a string as consecutive EMVCo TLV entries:
// 2 digit tag, 2 digit length, then length characters of value.
type scan struct {
	s        string
	fields   []field
	complete bool
	stop     int
}

func newScan(s string) *scan {
	sc := &scan{s: s}
	i := 0
	for i < len(s) {
		if i+4 > len(s) || !isDigits(s[i:i+4]) {
			sc.stop = i
			return sc
		}

		start := i + 4
		end := start + atoi2(s[i+2:i+4])
		if end > len(s) {
			// Trust the declared length and keep whatever is available.
			end = len(s)
		}

		sc.fields = append(sc.fields, field{tag: s[i : i+2], value: s[start:end]})
		i = end
	}

	sc.complete = true
	sc.stop = len(s)
	return sc
}

// get returns the value of the first entry with the given tag. If the walk
// stopped on a malformed header, the unparsed rest is searched for the first
// tag followed by a 2 digit length.
func (sc *scan) get(tag string) (string, bool) {
	for _, f := range sc.fields {
		if f.tag == tag {
			return f.value, true
		}
	}

	if sc.complete {
		return "", false
	}

	return search(sc.s[sc.stop:], tag)
}

func search(s, tag string) (string, bool) {
	for i := 0; i+4 < len(s); i++ {
		if s[i:i+2] != tag || !isDigits(s[i+2:i+4]) {
			continue
		}

		start := i + 4
		end := start + atoi2(s[i+2:i+4])
		if end > len(s) {
			end = len(s)
		}

		return s[start:end], true
	}

	return "", false
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return len(s) > 0
}

func atoi2(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}
