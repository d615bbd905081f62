package translator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/basegraph/analystcore/internal/apperr"
	"github.com/basegraph/analystcore/internal/semantic"
)

// resolvedRange is a dialect-rendered SQL boundary pair: either side may be
// unbounded (empty expr). Expressed as SQL text rather than a concrete
// instant so relative presets compile to CURRENT_DATE-relative expressions
// rather than literal timestamps baked in at translation time (spec §8:
// "Translator is deterministic given model+query+dialect").
type resolvedRange struct {
	startExpr string
	startOp   string // ">=" or ">"; "" if unbounded
	endExpr   string
	endOp     string // "<"; "" if unbounded
}

var (
	underscoreDashRe = regexp.MustCompile(`[_-]+`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	relativeRe       = regexp.MustCompile(`^(last|next)\s+(\d+)\s+(day|week|month|quarter|year)s?$`)
	thisLastNextRe   = regexp.MustCompile(`^(this|last|next)\s+(week|month|quarter|year)$`)
)

// normalizePreset lowercases, trims, and collapses '_'/'-' runs to a single
// space, grounded on original_source/.../query/tsql.py's
// `re.sub(r"[_-]+", " ", text)` — without it, underscore spellings like
// "last_7_days" never match the space-separated preset vocabulary below.
func normalizePreset(raw string) string {
	text := strings.ToLower(strings.TrimSpace(raw))
	text = underscoreDashRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// resolveDateRange expands a DateRange (explicit pair or named preset) into
// a dialect-rendered boundary pair, grounded on
// original_source/.../query/tsql.py's parse_relative_date_range.
func resolveDateRange(dr *semantic.DateRange, rules dialectRules) (resolvedRange, error) {
	if dr == nil {
		return resolvedRange{}, apperr.New(apperr.KindBusinessValidation, fmt.Errorf("nil date range"))
	}
	if dr.IsRange() {
		start, err := parseInstant(dr.Start)
		if err != nil {
			return resolvedRange{}, err
		}
		end, err := parseInstant(dr.End)
		if err != nil {
			return resolvedRange{}, err
		}
		return resolvedRange{
			startExpr: rules.FormatDateLiteral(start.Format(time.RFC3339)), startOp: ">=",
			endExpr: rules.FormatDateLiteral(end.AddDate(0, 0, 1).Format(time.RFC3339)), endOp: "<",
		}, nil
	}

	// Single-operator forms (before:/after:/on:) are matched against the raw,
	// un-normalized text: the value following the colon may itself contain
	// dashes (an ISO date), which normalizePreset's [_-]->" " rewrite would
	// corrupt.
	raw := strings.ToLower(strings.TrimSpace(dr.Preset))
	switch {
	case strings.HasPrefix(raw, "before:"):
		end, err := parseInstant(strings.TrimPrefix(raw, "before:"))
		if err != nil {
			return resolvedRange{}, err
		}
		return resolvedRange{endExpr: rules.FormatDateLiteral(end.Format(time.RFC3339)), endOp: "<"}, nil
	case strings.HasPrefix(raw, "after:"):
		start, err := parseInstant(strings.TrimPrefix(raw, "after:"))
		if err != nil {
			return resolvedRange{}, err
		}
		// Strict: "after d" excludes d itself (spec §4.2), unlike the
		// half-open >= used for range/preset start boundaries.
		return resolvedRange{startExpr: rules.FormatDateLiteral(start.Format(time.RFC3339)), startOp: ">"}, nil
	case strings.HasPrefix(raw, "on:"):
		day, err := parseInstant(strings.TrimPrefix(raw, "on:"))
		if err != nil {
			return resolvedRange{}, err
		}
		return resolvedRange{
			startExpr: rules.FormatDateLiteral(day.Format(time.RFC3339)), startOp: ">=",
			endExpr: rules.FormatDateLiteral(day.AddDate(0, 0, 1).Format(time.RFC3339)), endOp: "<",
		}, nil
	}

	preset := normalizePreset(dr.Preset)
	currentDate := rules.CurrentDateExpr()
	currentTS := rules.CurrentTimestampExpr()

	switch preset {
	case "today":
		return dayRange(rules, currentDate, 0, 1), nil
	case "yesterday":
		return dayRange(rules, currentDate, -1, 0), nil
	case "tomorrow":
		return dayRange(rules, currentDate, 1, 2), nil
	case "month to date":
		return resolvedRange{
			startExpr: rules.TruncateExpr(currentDate, "month"), startOp: ">=",
			endExpr: rules.DateAddExpr(currentDate, 1, "day"), endOp: "<",
		}, nil
	case "year to date":
		return resolvedRange{
			startExpr: rules.TruncateExpr(currentDate, "year"), startOp: ">=",
			endExpr: rules.DateAddExpr(currentDate, 1, "day"), endOp: "<",
		}, nil
	}

	if m := relativeRe.FindStringSubmatch(preset); m != nil {
		direction := m[1]
		amount, err := strconv.Atoi(m[2])
		if err != nil {
			return resolvedRange{}, apperr.Newf(apperr.KindBusinessValidation, "unrecognized date range preset %q", dr.Preset)
		}
		unit := m[3]
		if unit == "day" {
			if direction == "last" {
				// "last N days" includes today: window is [today-(N-1), today+1).
				return dayRange(rules, currentDate, -max(amount-1, 0), 1), nil
			}
			return resolvedRange{
				startExpr: currentDate, startOp: ">=",
				endExpr: rules.DateAddExpr(currentDate, amount, "day"), endOp: "<",
			}, nil
		}
		if direction == "last" {
			return resolvedRange{
				startExpr: rules.DateAddExpr(currentTS, -amount, unit), startOp: ">=",
				endExpr: currentTS, endOp: "<",
			}, nil
		}
		return resolvedRange{
			startExpr: currentTS, startOp: ">=",
			endExpr: rules.DateAddExpr(currentTS, amount, unit), endOp: "<",
		}, nil
	}

	if m := thisLastNextRe.FindStringSubmatch(preset); m != nil {
		direction, unit := m[1], m[2]
		truncated := rules.TruncateExpr(currentDate, unit)
		switch direction {
		case "this":
			return resolvedRange{
				startExpr: truncated, startOp: ">=",
				endExpr: rules.DateAddExpr(truncated, 1, unit), endOp: "<",
			}, nil
		case "last":
			return resolvedRange{
				startExpr: rules.DateAddExpr(truncated, -1, unit), startOp: ">=",
				endExpr: truncated, endOp: "<",
			}, nil
		default: // "next"
			start := rules.DateAddExpr(truncated, 1, unit)
			return resolvedRange{
				startExpr: start, startOp: ">=",
				endExpr: rules.DateAddExpr(start, 1, unit), endOp: "<",
			}, nil
		}
	}

	return resolvedRange{}, apperr.Newf(apperr.KindBusinessValidation, "unrecognized date range preset %q", dr.Preset)
}

// dayRange builds a [currentDate+startOffset, currentDate+endOffset) window.
func dayRange(rules dialectRules, currentDate string, startOffset, endOffset int) resolvedRange {
	start := currentDate
	if startOffset != 0 {
		start = rules.DateAddExpr(currentDate, startOffset, "day")
	}
	end := currentDate
	if endOffset != 0 {
		end = rules.DateAddExpr(currentDate, endOffset, "day")
	}
	return resolvedRange{startExpr: start, startOp: ">=", endExpr: end, endOp: "<"}
}

func parseInstant(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.Newf(apperr.KindBusinessValidation, "unparseable date %q", value)
}

// dateRangeCondition renders a resolved range as a SQL predicate against
// expr. An unbounded side (empty op) is omitted, producing a one-sided
// comparison.
func dateRangeCondition(expr string, rng resolvedRange) string {
	var parts []string
	if rng.startOp != "" {
		parts = append(parts, fmt.Sprintf("%s %s %s", expr, rng.startOp, rng.startExpr))
	}
	if rng.endOp != "" {
		parts = append(parts, fmt.Sprintf("%s %s %s", expr, rng.endOp, rng.endExpr))
	}
	if len(parts) == 0 {
		return "1 = 1"
	}
	return strings.Join(parts, " AND ")
}
