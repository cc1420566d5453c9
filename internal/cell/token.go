package cell

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"coursecal/internal/model"
)

// TokenKind classifies a bracket-delimited token.
type TokenKind int

const (
	TokenText TokenKind = iota
	TokenWeek
	TokenPeriod
)

// Token is one bracketed segment of an encoded schedule line.
type Token struct {
	Kind TokenKind
	Raw  string

	// Week tokens
	Weeks  []model.WeekRange
	Parity model.Parity

	// Period tokens
	Periods model.PeriodRange
}

var (
	// 3-17周, 12周, 1-4,6,9-12周, 3-17单周, 2-16(双)周
	weekTokenRe = regexp.MustCompile(`^(\d+(?:-\d+)?(?:,\d+(?:-\d+)?)*)\(?([单双])?\)?周$`)
	// 3-4节, 5节
	periodTokenRe = regexp.MustCompile(`^(\d+)(?:-(\d+))?节$`)
	digitsRe      = regexp.MustCompile(`\d+`)

	bracketReplacer = strings.NewReplacer("【", "[", "】", "]", "\r\n", "\n", "\r", "\n", "，", ",", "～", "-", "~", "-", "—", "-")
)

// normalize folds full-width forms (［３－１７周］) to their narrow
// equivalents so the grammar only deals with ASCII punctuation and digits.
func normalize(s string) string {
	return bracketReplacer.Replace(width.Fold.String(s))
}

// Tokenize splits s on '[' and ']' and classifies every bracketed segment.
// Text outside brackets is ignored. Empty segments are dropped.
func Tokenize(s string) []Token {
	s = normalize(s)
	var tokens []Token
	depth := 0
	var cur strings.Builder
	for _, r := range s {
		switch r {
		case '[':
			if depth == 0 {
				cur.Reset()
			} else {
				cur.WriteRune(r)
			}
			depth++
		case ']':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				if tok, ok := classify(cur.String()); ok {
					tokens = append(tokens, tok)
				}
			} else {
				cur.WriteRune(r)
			}
		default:
			if depth > 0 {
				cur.WriteRune(r)
			}
		}
	}
	return tokens
}

func classify(raw string) (Token, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Token{}, false
	}
	compact := strings.ReplaceAll(raw, " ", "")

	if m := weekTokenRe.FindStringSubmatch(compact); m != nil {
		weeks, ok := parseWeekList(m[1])
		if ok {
			return Token{Kind: TokenWeek, Raw: raw, Weeks: weeks, Parity: parseParity(m[2])}, true
		}
	}
	if m := periodTokenRe.FindStringSubmatch(compact); m != nil {
		start, _ := strconv.Atoi(m[1])
		end := start
		if m[2] != "" {
			end, _ = strconv.Atoi(m[2])
		}
		pr := model.PeriodRange{Start: start, End: end}
		if pr.Valid() {
			return Token{Kind: TokenPeriod, Raw: raw, Periods: pr}, true
		}
	}
	return Token{Kind: TokenText, Raw: raw}, true
}

func parseParity(s string) model.Parity {
	switch s {
	case "单":
		return model.OddWeeks
	case "双":
		return model.EvenWeeks
	default:
		return model.EveryWeek
	}
}

// parseWeekList parses "1-4,6,9-12" into ranges. A single week N becomes (N, N).
func parseWeekList(s string) ([]model.WeekRange, bool) {
	parts := strings.Split(s, ",")
	out := make([]model.WeekRange, 0, len(parts))
	for _, part := range parts {
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(lo)
		if err != nil {
			return nil, false
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(hi); err != nil {
				return nil, false
			}
		}
		wr := model.WeekRange{Start: start, End: end}
		if !wr.Valid() {
			return nil, false
		}
		out = append(out, wr)
	}
	return out, true
}

// headerPeriods derives a period range from the digits of a row header
// such as "第3-4节" or "3\n4". A single number yields (n, n).
func headerPeriods(header string) (model.PeriodRange, bool) {
	nums := digitsRe.FindAllString(normalize(header), -1)
	if len(nums) == 0 {
		return model.PeriodRange{}, false
	}
	start, _ := strconv.Atoi(nums[0])
	end := start
	if len(nums) > 1 {
		end, _ = strconv.Atoi(nums[1])
	}
	pr := model.PeriodRange{Start: start, End: end}
	return pr, pr.Valid()
}
