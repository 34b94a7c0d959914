package coerce

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default formats.
const (
	DefaultDateFormat = "Y-m-d H:i:s"
	StorageDatetime   = "Y-m-d H:i:s.u"
	StorageDate       = "Y-m-d"
)

// FormatPHP renders t with a PHP date() style format string.
// A backslash escapes the next character. Unknown letters are copied.
func FormatPHP(t time.Time, format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c == '\\' && i+1 < len(format) {
			i++
			b.WriteByte(format[i])
			continue
		}
		b.WriteString(formatLetter(t, c))
	}
	return b.String()
}

func formatLetter(t time.Time, c byte) string {
	switch c {
	// Day
	case 'd':
		return t.Format("02")
	case 'D':
		return t.Format("Mon")
	case 'j':
		return strconv.Itoa(t.Day())
	case 'l':
		return t.Format("Monday")
	case 'N':
		wd := int(t.Weekday())
		if wd == 0 {
			wd = 7
		}
		return strconv.Itoa(wd)
	case 'w':
		return strconv.Itoa(int(t.Weekday()))
	case 'z':
		return strconv.Itoa(t.YearDay() - 1)
	// Month
	case 'm':
		return t.Format("01")
	case 'M':
		return t.Format("Jan")
	case 'n':
		return strconv.Itoa(int(t.Month()))
	case 'F':
		return t.Format("January")
	case 't':
		return strconv.Itoa(time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day())
	// Year
	case 'Y':
		return fmt.Sprintf("%04d", t.Year())
	case 'y':
		return t.Format("06")
	// Time
	case 'a':
		return strings.ToLower(t.Format("PM"))
	case 'A':
		return t.Format("PM")
	case 'g':
		return t.Format("3")
	case 'G':
		return strconv.Itoa(t.Hour())
	case 'h':
		return t.Format("03")
	case 'H':
		return t.Format("15")
	case 'i':
		return t.Format("04")
	case 's':
		return t.Format("05")
	case 'u':
		return fmt.Sprintf("%06d", t.Nanosecond()/1000)
	case 'v':
		return fmt.Sprintf("%03d", t.Nanosecond()/1_000_000)
	// Timezone
	case 'e':
		return t.Location().String()
	case 'T':
		return t.Format("MST")
	case 'O':
		return t.Format("-0700")
	case 'P':
		return t.Format("-07:00")
	case 'Z':
		_, off := t.Zone()
		return strconv.Itoa(off)
	// Full
	case 'c':
		return t.Format("2006-01-02T15:04:05-07:00")
	case 'r':
		return t.Format("Mon, 02 Jan 2006 15:04:05 -0700")
	case 'U':
		return strconv.FormatInt(t.Unix(), 10)
	}
	return string(c)
}

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"2006-01-02 15:04:05 -0700 MST",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	"02 Jan 2006",
	"Jan 2, 2006",
}

// ParseTime parses s in one of the common textual date layouts, interpreting
// zone-less values in loc. "@<epoch>" and bare integers are epoch seconds;
// "now" is resolved through now.
func ParseTime(s string, loc *time.Location, now func() time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	if epoch, ok := strings.CutPrefix(s, "@"); ok {
		n, err := strconv.ParseInt(epoch, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
		}
		return time.Unix(n, 0).In(loc), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).In(loc), nil
	}
	switch strings.ToLower(s) {
	case "now":
		return now().In(loc), nil
	case "today":
		y, m, d := now().In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unrecognized layout", s)
}
