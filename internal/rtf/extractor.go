// Package rtf converts RTF documents to plain text.
package rtf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

var ErrNotRTF = errors.New("input is not an rtf document")

// Extract returns the plain text of an RTF document. It never fails: input the
// converter cannot handle goes through the regex stripper instead.
func Extract(data []byte) string {
	text, err := Convert(data)
	if err != nil {
		return Strip(string(data))
	}
	return text
}

// ExtractFile reads and extracts a file.
func ExtractFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read rtf file: %w", err)
	}
	return Extract(data), nil
}

// Convert runs the full converter. Output keeps one line per paragraph.
func Convert(data []byte) (text string, err error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n\uFEFF")
	if !bytes.HasPrefix(trimmed, []byte(`{\rtf`)) {
		return "", ErrNotRTF
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rtf conversion failed: %v", r)
		}
	}()

	c := newConverter(trimmed)
	c.run()
	return tidy(c.out.String()), nil
}

var (
	unicodeEscape = regexp.MustCompile(`\\u(-?\d+)\??`)
	hexEscape     = regexp.MustCompile(`\\'([0-9a-fA-F]{2})`)
	controlWord   = regexp.MustCompile(`\\[a-zA-Z]+-?\d*\s?`)
	controlSymbol = regexp.MustCompile(`\\[^a-zA-Z{}\\]`)
	escapedBrace  = regexp.MustCompile(`\\([{}\\])`)
	whitespaceRun = regexp.MustCompile(`\s+`)

	// escaped literals are parked on control characters while braces are stripped
	placeholders = strings.NewReplacer("{", "\x01", "}", "\x02", `\`, "\x03")
	restore      = strings.NewReplacer("\x01", "{", "\x02", "}", "\x03", `\`)
)

// Strip is the best-effort fallback: escapes are resolved, control words and
// braces removed and all whitespace collapsed to single spaces.
func Strip(s string) string {
	s = unicodeEscape.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.Atoi(unicodeEscape.FindStringSubmatch(m)[1])
		if err != nil {
			return ""
		}
		if n < 0 {
			n += 65536
		}
		return string(rune(n))
	})
	s = hexEscape.ReplaceAllStringFunc(s, func(m string) string {
		b, err := strconv.ParseUint(m[2:], 16, 8)
		if err != nil {
			return ""
		}
		return decodeByte(byte(b))
	})
	s = escapedBrace.ReplaceAllStringFunc(s, func(m string) string {
		return placeholders.Replace(m[1:])
	})
	s = controlWord.ReplaceAllString(s, " ")
	s = controlSymbol.ReplaceAllString(s, "")
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	s = restore.Replace(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func decodeByte(b byte) string {
	return string(charmap.Windows1252.DecodeByte(b))
}

// tidy collapses spaces inside lines and drops empty lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
