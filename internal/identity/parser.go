package identity

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NationalIDPattern matches the dotted RUT shape, e.g. 12.345.678-5 or 9.876.543-K.
var NationalIDPattern = regexp.MustCompile(`\d{1,2}\.\d{3}\.\d{3}-[\dkK]`)

const (
	labelNames    = "NOMBRES"
	labelSurnames = "APELLIDOS"
)

// Parser pulls identity fields out of OCR text. It never fails: absence is an unmatched field.
type Parser struct {
	labeledNames bool
	logger       *slog.Logger
}

// NewParser builds a parser. With labeledNames set, the value following a
// NOMBRES / APELLIDOS label (same line after a colon, or the next non-label line)
// fills name and surname; otherwise both stay unmatched.
func NewParser(labeledNames bool, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{labeledNames: labeledNames, logger: logger}
}

func (p *Parser) Parse(text string) Record {
	var rec Record

	if id := NationalIDPattern.FindString(text); id != "" {
		rec.NationalID = Matched(id)
		if !ValidCheckDigit(id) {
			// OCR noise is common; keep the token and let the submitter confirm it.
			p.logger.Warn("national id check digit mismatch", "national_id", id)
		}
	}

	if p.labeledNames {
		lines := splitLines(text)
		rec.Name = labeledValue(lines, labelNames)
		rec.Surname = labeledValue(lines, labelSurnames)
	}

	p.logger.Debug("identity parsed",
		"name_matched", rec.Name.IsMatched(),
		"surname_matched", rec.Surname.IsMatched(),
		"national_id_matched", rec.NationalID.IsMatched(),
	)
	return rec
}

func splitLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func labeledValue(lines []string, label string) Field {
	for i, l := range lines {
		head, rest, hasColon := strings.Cut(l, ":")
		if foldLabel(head) != label {
			continue
		}
		if hasColon {
			if v := strings.TrimSpace(rest); v != "" {
				return Matched(v)
			}
		}
		if i+1 < len(lines) && !isLabel(lines[i+1]) {
			return Matched(lines[i+1])
		}
		return Unmatched()
	}
	return Unmatched()
}

func isLabel(l string) bool {
	head, _, _ := strings.Cut(l, ":")
	switch foldLabel(head) {
	case labelNames, labelSurnames:
		return true
	}
	return false
}

// foldLabel uppercases and strips accents so "Apellidos" and "APELLÍDOS" compare equal.
func foldLabel(s string) string {
	// chains carry state; build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.TrimSpace(out))
}
