package realworks

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	errEmptyValue = errors.New("empty value")

	datePattern      = regexp.MustCompile(`(\d{1,2})[-/](\d{1,2})[-/](\d{2,4})`)
	thousandsPattern = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
)

// ParseEuro converts a Dutch-formatted amount such as "€ 1.250.000,50",
// "525.000,-" or "525000" to a float.
func ParseEuro(s string) (float64, error) {
	s = strings.NewReplacer("€", "", " ", "", " ", "", "\t", "").Replace(s)
	s = strings.TrimRight(s, ",-.")
	if s == "" {
		return 0, errEmptyValue
	}

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case thousandsPattern.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// ParseDate converts DD-MM-YYYY or DD/MM/YY to ISO YYYY-MM-DD. Two-digit
// years are taken as 20xx.
func ParseDate(s string) (string, error) {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("invalid date %q", s)
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	yearText := m[3]
	if len(yearText) == 2 {
		yearText = "20" + yearText
	}
	year, _ := strconv.Atoi(yearText)

	iso := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	if _, err := time.Parse("2006-01-02", iso); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return iso, nil
}

// ParseDecimal accepts both comma and dot as decimal separator.
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	if s == "" {
		return 0, errEmptyValue
	}
	return strconv.ParseFloat(s, 64)
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if y < 1200 || y > time.Now().Year()+10 {
		return 0, fmt.Errorf("implausible year %d", y)
	}
	return y, nil
}

// titleCase turns "GOED" or "goed" into "Goed".
func titleCase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
