// Package address turns Dutch addresses from either source into a canonical
// matching key. Everything here is pure and deterministic.
package address

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fields holds the discrete parts of an address.
type Fields struct {
	Street      string
	HouseNumber string
	Suffix      string
	PostalCode  string
	City        string
}

var postalPattern = regexp.MustCompile(`\b(\d{4})\s?([A-Za-z]{2})\b`)

// Key returns the AddressKey for discrete address fields.
func Key(f Fields) string {
	parts := []string{
		clean(f.Street),
		unit(f.HouseNumber, f.Suffix),
		strings.ReplaceAll(clean(f.PostalCode), " ", ""),
		clean(f.City),
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// KeyFromString returns the AddressKey for a single display address.
func KeyFromString(full string) string {
	return Key(Split(full))
}

// Split parses "Street 10 A, 1015 CJ Amsterdam" and its common variants.
func Split(full string) Fields {
	full = strings.Join(strings.Fields(full), " ")
	if full == "" {
		return Fields{}
	}

	parts := strings.Split(full, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var f Fields
	f.Street, f.HouseNumber, f.Suffix = splitStreet(parts[0])

	if len(parts) >= 2 {
		second := parts[1]
		if loc := postalPattern.FindStringSubmatchIndex(second); loc != nil {
			f.PostalCode = second[loc[2]:loc[3]] + strings.ToUpper(second[loc[4]:loc[5]])
			f.City = strings.TrimSpace(second[:loc[0]] + second[loc[1]:])
			if f.City == "" && len(parts) >= 3 {
				f.City = parts[2]
			}
		} else if len(parts) >= 3 {
			f.PostalCode = strings.ReplaceAll(second, " ", "")
			f.City = parts[2]
		} else {
			f.City = second
		}
	}

	return f
}

// Format renders fields as a display address.
func Format(f Fields) string {
	street := strings.TrimSpace(f.Street)
	if n := strings.TrimSpace(f.HouseNumber); n != "" {
		street += " " + n
		if s := strings.TrimSpace(f.Suffix); s != "" {
			street += " " + s
		}
	}

	locality := strings.TrimSpace(strings.TrimSpace(f.PostalCode) + " " + strings.TrimSpace(f.City))
	if locality == "" {
		return street
	}
	return street + ", " + locality
}

// Tokens splits a key into its set of words.
func Tokens(key string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(key) {
		set[t] = struct{}{}
	}
	return set
}

// TokenOverlap is |A∩B| / max(|A|,|B|) * 100 over the word sets of two keys.
func TokenOverlap(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}

	denom := len(ta)
	if len(tb) > denom {
		denom = len(tb)
	}
	return float64(shared) / float64(denom) * 100
}

// NormalizeStreet gives the comparison form of a street name.
func NormalizeStreet(name string) string {
	return clean(strings.ReplaceAll(name, "-", " "))
}

// Unit returns the comparison form of a house number with its suffix.
func Unit(houseNumber, suffix string) string {
	return unit(houseNumber, suffix)
}

// SameUnit reports whether both addresses point at the same street and house unit.
// The suffix matters: "10" and "10 A" are different dwellings.
func SameUnit(a, b Fields) bool {
	street := NormalizeStreet(a.Street)
	if street == "" || street != NormalizeStreet(b.Street) {
		return false
	}
	return unit(a.HouseNumber, a.Suffix) == unit(b.HouseNumber, b.Suffix)
}

// Fold removes diacritics.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func clean(s string) string {
	s = strings.ToLower(Fold(s))

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// unit splits "10A", "10 a" or "10" + "-A" into "10 a".
func unit(houseNumber, suffix string) string {
	combined := clean(houseNumber + " " + suffix)
	if combined == "" {
		return ""
	}

	i := 0
	for i < len(combined) && combined[i] >= '0' && combined[i] <= '9' {
		i++
	}
	if i == 0 {
		return combined
	}

	number := combined[:i]
	rest := strings.TrimSpace(combined[i:])
	if rest == "" {
		return number
	}
	return number + " " + rest
}

// splitStreet separates the trailing house unit from the street name.
// The unit is the number token plus at most one following token.
func splitStreet(s string) (street, number, suffix string) {
	tokens := strings.Fields(s)
	n := len(tokens)

	idx := -1
	switch {
	case n >= 3 && startsWithDigit(tokens[n-2]):
		idx = n - 2
	case n >= 2 && startsWithDigit(tokens[n-1]):
		idx = n - 1
	}
	if idx <= 0 {
		return s, "", ""
	}

	street = strings.Join(tokens[:idx], " ")
	head := tokens[idx]

	i := 0
	for i < len(head) && head[i] >= '0' && head[i] <= '9' {
		i++
	}
	number = head[:i]

	rest := strings.TrimLeft(head[i:], "-/ ")
	if idx+1 < n {
		rest = strings.TrimSpace(rest + " " + tokens[idx+1])
	}
	return street, number, rest
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
