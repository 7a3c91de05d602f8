package fact

import "time"

// Epoch is day zero for relation timestamps: 2020-01-01 UTC.
var Epoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Day counts whole days since Epoch. Relation timestamps are day-granular
// by design, coarser than Item timestamps.
type Day int64

// CurrentDay returns today as days since Epoch.
func CurrentDay() Day {
	return DayOf(time.Now())
}

// DayOf converts a timestamp to days since Epoch.
// Times before Epoch yield negative days.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Sub(Epoch) / (24 * time.Hour))
}

// Time returns the UTC midnight at which the day starts.
func (d Day) Time() time.Time {
	return Epoch.Add(time.Duration(d) * 24 * time.Hour)
}
