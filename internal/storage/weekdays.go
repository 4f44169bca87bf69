package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayAbbrevs = [...]string{"", "Seg", "Ter", "Qua", "Qui", "Sex", "Sáb", "Dom"}

// weekdayNames maps folded (lowercase, unaccented) abbreviations and full
// day names to a weekday.
var weekdayNames = map[string]Weekday{
	"seg": Monday, "segunda": Monday, "segunda-feira": Monday,
	"ter": Tuesday, "terca": Tuesday, "terca-feira": Tuesday,
	"qua": Wednesday, "quarta": Wednesday, "quarta-feira": Wednesday,
	"qui": Thursday, "quinta": Thursday, "quinta-feira": Thursday,
	"sex": Friday, "sexta": Friday, "sexta-feira": Friday,
	"sab": Saturday, "sabado": Saturday,
	"dom": Sunday, "domingo": Sunday,
}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayAbbrevs[d]
}

// TimeWeekday converts to the standard library weekday.
func (d Weekday) TimeWeekday() time.Weekday {
	if d == Sunday {
		return time.Sunday
	}
	return time.Weekday(d)
}

func WeekdayOf(day time.Weekday) Weekday {
	if day == time.Sunday {
		return Sunday
	}
	return Weekday(day)
}

// ParseWeekday accepts abbreviations and full Portuguese day names, ignoring
// case and accents.
func ParseWeekday(raw string) (Weekday, bool) {
	day, ok := weekdayNames[foldName(raw)]
	return day, ok
}

func foldName(raw string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), raw)
	if err != nil {
		stripped = raw
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}

// WeekdaySet is an ordered, duplicate-free set of weekdays in calendar order
// (Seg first, Dom last).
type WeekdaySet []Weekday

func NewWeekdaySet(days ...Weekday) WeekdaySet {
	seen := map[Weekday]struct{}{}
	out := WeekdaySet{}
	for _, day := range days {
		if !day.Valid() {
			continue
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseWeekdayList parses caller input strictly: an unknown name is an error.
func ParseWeekdayList(values []string) (WeekdaySet, error) {
	days := make([]Weekday, 0, len(values))
	for _, value := range values {
		day, ok := ParseWeekday(value)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", value)
		}
		days = append(days, day)
	}
	return NewWeekdaySet(days...), nil
}

func (s WeekdaySet) Contains(day Weekday) bool {
	for _, d := range s {
		if d == day {
			return true
		}
	}
	return false
}

func (s WeekdaySet) Strings() []string {
	out := make([]string, 0, len(s))
	for _, day := range s {
		out = append(out, day.String())
	}
	return out
}

func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("decode weekdays: %w", err)
	}
	set, err := ParseWeekdayList(names)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// NormalizeWeekdays decodes either on-disk encoding of a schedule's weekdays:
// the current JSON list of abbreviations or the legacy object of day names
// to booleans. Malformed input yields an empty set.
func NormalizeWeekdays(raw []byte) WeekdaySet {
	set, _, err := decodeWeekdays(raw)
	if err != nil {
		return WeekdaySet{}
	}
	return set
}

// decodeWeekdays reports whether the value used the legacy object encoding.
func decodeWeekdays(raw []byte) (WeekdaySet, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return WeekdaySet{}, false, nil
	}

	var value any
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return nil, false, fmt.Errorf("decode weekdays: %w", err)
	}

	switch typed := value.(type) {
	case []any:
		days := make([]Weekday, 0, len(typed))
		for _, item := range typed {
			name, ok := item.(string)
			if !ok {
				continue
			}
			if day, ok := ParseWeekday(name); ok {
				days = append(days, day)
			}
		}
		return NewWeekdaySet(days...), false, nil
	case map[string]any:
		days := make([]Weekday, 0, len(typed))
		for key, enabled := range typed {
			if flag, ok := enabled.(bool); !ok || !flag {
				continue
			}
			if day, ok := ParseWeekday(key); ok {
				days = append(days, day)
			}
		}
		return NewWeekdaySet(days...), true, nil
	case nil:
		return WeekdaySet{}, false, nil
	default:
		return nil, false, fmt.Errorf("decode weekdays: unsupported JSON value %T", value)
	}
}

func encodeWeekdays(set WeekdaySet) string {
	payload, err := json.Marshal(NewWeekdaySet(set...).Strings())
	if err != nil {
		return "[]"
	}
	return string(payload)
}
