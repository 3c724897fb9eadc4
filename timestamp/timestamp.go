// Package timestamp parses the localized timestamp strings embedded in
// rendered wiki signatures and formats absolute times back into the same
// shape. A Parser is built from a MediaWiki date format string plus the
// wiki's month name, digit, and timezone tables, and produces UTC times at
// whole-minute resolution (signatures carry no seconds).
package timestamp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config carries the per-wiki tables the parser is built from.
type Config struct {
	// Format is the MediaWiki date format string, e.g. "H:i, j F Y (T)".
	// Supported tokens: H G i j d n m F M xg Y y T, backslash escapes,
	// and "quoted" literals.
	Format string `yaml:"format"`
	// Months are the twelve nominative month names.
	Months []string `yaml:"months"`
	// MonthsGen are the genitive month names used by the xg token.
	MonthsGen []string `yaml:"months_genitive"`
	// MonthsAbbr are the abbreviated month names used by the M token.
	MonthsAbbr []string `yaml:"months_abbr"`
	// Digits maps local digit runes to "0123456789" positionally.
	// Empty means ASCII digits.
	Digits string `yaml:"digits"`
	// TimezoneOffsets maps timezone abbreviations to offsets in minutes
	// east of UTC, e.g. {"UTC": 0, "CET": 60}.
	TimezoneOffsets map[string]int `yaml:"timezone_offsets"`
	// DefaultOffset is the wiki's offset in minutes, applied when the
	// format has no T token or the matched abbreviation is unknown.
	DefaultOffset int `yaml:"default_offset"`
}

type tokenKind int

const (
	tokHour tokenKind = iota
	tokMinute
	tokDay
	tokMonthNum
	tokMonthName
	tokMonthAbbr
	tokMonthGen
	tokYear4
	tokYear2
	tokTimezone
)

// Parser matches and parses timestamps of one wiki's format.
type Parser struct {
	cfg    Config
	re     *regexp.Regexp
	tokens []tokenKind
}

// Match is one located timestamp within a larger string.
type Match struct {
	Time  time.Time // UTC, whole-minute
	Start int       // byte offset of the match
	End   int
	Text  string // the raw matched text
}

// New builds a Parser from cfg. It returns an error when the format string
// references month tables the config does not provide.
func New(cfg Config) (*Parser, error) {
	if cfg.Format == "" {
		cfg.Format = "H:i, j F Y (T)"
	}
	p := &Parser{cfg: cfg}
	src, err := p.buildPattern()
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("timestamp: compile %q: %w", src, err)
	}
	p.re = re
	return p, nil
}

// Regexp exposes the compiled matcher, for callers that embed it in a
// larger signature pattern.
func (p *Parser) Regexp() *regexp.Regexp { return p.re }

func (p *Parser) buildPattern() (string, error) {
	var b strings.Builder
	f := p.cfg.Format
	num := p.digitClass()

	appendGroup := func(pat string, k tokenKind) {
		b.WriteString(pat)
		p.tokens = append(p.tokens, k)
	}

	for i := 0; i < len(f); i++ {
		switch c := f[i]; c {
		case 'H', 'G':
			appendGroup("("+num+"{1,2})", tokHour)
		case 'i':
			appendGroup("("+num+"{2})", tokMinute)
		case 'j', 'd':
			appendGroup("("+num+"{1,2})", tokDay)
		case 'n', 'm':
			appendGroup("("+num+"{1,2})", tokMonthNum)
		case 'F':
			alt, err := nameAlternation(p.cfg.Months, "F")
			if err != nil {
				return "", err
			}
			appendGroup(alt, tokMonthName)
		case 'M':
			alt, err := nameAlternation(p.cfg.MonthsAbbr, "M")
			if err != nil {
				return "", err
			}
			appendGroup(alt, tokMonthAbbr)
		case 'x':
			if i+1 < len(f) && f[i+1] == 'g' {
				i++
				alt, err := nameAlternation(p.cfg.MonthsGen, "xg")
				if err != nil {
					return "", err
				}
				appendGroup(alt, tokMonthGen)
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
			}
		case 'Y':
			appendGroup("("+num+"{4})", tokYear4)
		case 'y':
			appendGroup("("+num+"{2})", tokYear2)
		case 'T':
			appendGroup(`([A-Z]{1,5}|[+\-]\d{2}:?\d{2})`, tokTimezone)
		case '\\':
			if i+1 < len(f) {
				i++
				b.WriteString(regexp.QuoteMeta(string(f[i])))
			}
		case '"':
			j := strings.IndexByte(f[i+1:], '"')
			if j == -1 {
				b.WriteString(regexp.QuoteMeta(string(c)))
				break
			}
			b.WriteString(regexp.QuoteMeta(f[i+1 : i+1+j]))
			i += j + 1
		case ' ':
			// Rendered pages use regular and no-break spaces interchangeably.
			b.WriteString("[  ]")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String(), nil
}

func (p *Parser) digitClass() string {
	if p.cfg.Digits == "" {
		return `\d`
	}
	return "[" + regexp.QuoteMeta(p.cfg.Digits) + `\d]`
}

func nameAlternation(names []string, token string) (string, error) {
	if len(names) != 12 {
		return "", fmt.Errorf("timestamp: token %s needs 12 month names, have %d", token, len(names))
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return "((?i:" + strings.Join(quoted, "|") + "))", nil
}

// Parse locates the first timestamp in text. ok is false when text contains
// no timestamp or the matched values do not form a valid date.
func (p *Parser) Parse(text string) (m Match, ok bool) {
	loc := p.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false
	}
	return p.assemble(text, loc)
}

// FindAll locates every parseable timestamp in text, in order.
func (p *Parser) FindAll(text string) []Match {
	var out []Match
	for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
		if m, ok := p.assemble(text, loc); ok {
			out = append(out, m)
		}
	}
	return out
}

func (p *Parser) assemble(text string, loc []int) (Match, bool) {
	year, month, day, hour, minute := 0, 0, 0, 0, 0
	offset := p.cfg.DefaultOffset

	for gi, k := range p.tokens {
		s, e := loc[2*(gi+1)], loc[2*(gi+1)+1]
		if s == -1 {
			return Match{}, false
		}
		v := p.toASCIIDigits(text[s:e])
		switch k {
		case tokHour:
			hour = atoi(v)
		case tokMinute:
			minute = atoi(v)
		case tokDay:
			day = atoi(v)
		case tokMonthNum:
			month = atoi(v)
		case tokMonthName:
			month = monthIndex(p.cfg.Months, v)
		case tokMonthAbbr:
			month = monthIndex(p.cfg.MonthsAbbr, v)
		case tokMonthGen:
			month = monthIndex(p.cfg.MonthsGen, v)
		case tokYear4:
			year = atoi(v)
		case tokYear2:
			year = 2000 + atoi(v)
		case tokTimezone:
			offset = p.tzOffset(v)
		}
	}

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || year == 0 {
		return Match{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC).
		Add(-time.Duration(offset) * time.Minute)
	return Match{
		Time:  t,
		Start: loc[0],
		End:   loc[1],
		Text:  text[loc[0]:loc[1]],
	}, true
}

func (p *Parser) tzOffset(abbr string) int {
	if len(abbr) >= 5 && (abbr[0] == '+' || abbr[0] == '-') {
		h := atoi(abbr[1:3])
		m := atoi(strings.TrimPrefix(abbr[3:], ":"))
		off := h*60 + m
		if abbr[0] == '-' {
			off = -off
		}
		return off
	}
	if off, okTz := p.cfg.TimezoneOffsets[abbr]; okTz {
		return off
	}
	// Unknown abbreviation: the least wrong assumption is UTC.
	return 0
}

// toASCIIDigits converts local digits to ASCII using the config table.
func (p *Parser) toASCIIDigits(s string) string {
	if p.cfg.Digits == "" {
		return s
	}
	local := []rune(p.cfg.Digits)
	return strings.Map(func(r rune) rune {
		for i, d := range local {
			if r == d && i < 10 {
				return rune('0' + i)
			}
		}
		return r
	}, s)
}

// toLocalDigits converts ASCII digits to the wiki's digit set.
func (p *Parser) toLocalDigits(s string) string {
	if p.cfg.Digits == "" {
		return s
	}
	local := []rune(p.cfg.Digits)
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' && int(r-'0') < len(local) {
			return local[r-'0']
		}
		return r
	}, s)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func monthIndex(names []string, v string) int {
	for i, n := range names {
		if strings.EqualFold(n, v) {
			return i + 1
		}
	}
	return 0
}

// Format renders t (taken as UTC) through the parser's format string.
func (p *Parser) Format(t time.Time) string {
	t = t.UTC().Add(time.Duration(p.cfg.DefaultOffset) * time.Minute)
	var b strings.Builder
	f := p.cfg.Format
	for i := 0; i < len(f); i++ {
		switch c := f[i]; c {
		case 'H':
			b.WriteString(p.toLocalDigits(fmt.Sprintf("%02d", t.Hour())))
		case 'G':
			b.WriteString(p.toLocalDigits(strconv.Itoa(t.Hour())))
		case 'i':
			b.WriteString(p.toLocalDigits(fmt.Sprintf("%02d", t.Minute())))
		case 'j':
			b.WriteString(p.toLocalDigits(strconv.Itoa(t.Day())))
		case 'd':
			b.WriteString(p.toLocalDigits(fmt.Sprintf("%02d", t.Day())))
		case 'n':
			b.WriteString(p.toLocalDigits(strconv.Itoa(int(t.Month()))))
		case 'm':
			b.WriteString(p.toLocalDigits(fmt.Sprintf("%02d", int(t.Month()))))
		case 'F':
			b.WriteString(p.cfg.Months[t.Month()-1])
		case 'M':
			b.WriteString(p.cfg.MonthsAbbr[t.Month()-1])
		case 'x':
			if i+1 < len(f) && f[i+1] == 'g' {
				i++
				b.WriteString(p.cfg.MonthsGen[t.Month()-1])
			} else {
				b.WriteByte(c)
			}
		case 'Y':
			b.WriteString(p.toLocalDigits(fmt.Sprintf("%04d", t.Year())))
		case 'y':
			b.WriteString(p.toLocalDigits(fmt.Sprintf("%02d", t.Year()%100)))
		case 'T':
			b.WriteString(p.tzName())
		case '\\':
			if i+1 < len(f) {
				i++
				b.WriteByte(f[i])
			}
		case '"':
			j := strings.IndexByte(f[i+1:], '"')
			if j == -1 {
				b.WriteByte(c)
				break
			}
			b.WriteString(f[i+1 : i+1+j])
			i += j + 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (p *Parser) tzName() string {
	for abbr, off := range p.cfg.TimezoneOffsets {
		if off == p.cfg.DefaultOffset {
			return abbr
		}
	}
	if p.cfg.DefaultOffset == 0 {
		return "UTC"
	}
	sign := "+"
	off := p.cfg.DefaultOffset
	if off < 0 {
		sign = "-"
		off = -off
	}
	return fmt.Sprintf("%s%02d%02d", sign, off/60, off%60)
}
