// Public domain.

// Package obsday converts observation header dates to a decimal day
// count.
//
// Days are counted from the modified Julian date epoch, 1858 November
// 17.0 UT.  The count is only used to order and group observations.
package obsday

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"
)

// mjd0 is the Julian date of day zero.
const mjd0 = 2400000.5

var (
	rxDate = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:T(.*))?$`)
	rxTime = regexp.MustCompile(`^(\d{1,2}):(\d{1,2}):(\d{1,2}(?:\.\d*)?)$`)
)

// Day returns the day count for a DATE-OBS value, either YYYY-MM-DD or
// YYYY-MM-DDThh:mm:ss[.s], and a UT value hh:mm:ss[.s].  A time in
// dateObs takes precedence over ut.  With neither, the time is 0h.
func Day(dateObs, ut string) (float64, error) {
	m := rxDate.FindStringSubmatch(dateObs)
	if m == nil {
		return 0, fmt.Errorf("invalid DATE-OBS %q", dateObs)
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return 0, fmt.Errorf("invalid DATE-OBS %q", dateObs)
	}
	tm := m[4]
	if tm == "" {
		tm = ut
	}
	var t unit.Time
	if tm != "" {
		var err error
		if t, err = parseTime(tm); err != nil {
			return 0, err
		}
	}
	return julian.CalendarGregorianToJD(y, mo, float64(d)+t.Day()) - mjd0, nil
}

func parseTime(s string) (unit.Time, error) {
	m := rxTime.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, _ := strconv.ParseInt(m[1], 10, 64)
	mi, _ := strconv.ParseInt(m[2], 10, 64)
	sec, _ := strconv.ParseFloat(m[3], 64)
	if h > 23 || mi > 59 || sec >= 61 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return unit.NewTime(' ', int(h), int(mi), sec), nil
}

// Format renders a day count as a calendar date and sexagesimal UT for
// log messages.
func Format(day float64) string {
	y, m, d := julian.JDToCalendar(day + mjd0)
	id := math.Floor(d)
	return fmt.Sprintf("%d-%02d-%02d %.0s", y, m, int(id),
		sexa.FmtTime(unit.TimeFromDay(d-id)))
}
