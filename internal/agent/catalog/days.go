package catalog

import "time"

type Day struct {
	Weekday time.Weekday
	Name    string
}

// Weekdays in Spanish, Monday first.
var Weekdays = []Day{
	{time.Monday, "Lunes"},
	{time.Tuesday, "Martes"},
	{time.Wednesday, "Miércoles"},
	{time.Thursday, "Jueves"},
	{time.Friday, "Viernes"},
	{time.Saturday, "Sábado"},
	{time.Sunday, "Domingo"},
}

// DayName returns the Spanish name of d.
func DayName(d time.Weekday) string {
	for _, day := range Weekdays {
		if day.Weekday == d {
			return day.Name
		}
	}
	return ""
}

// Relative tells how a requested day relates to today.
type Relative int

const (
	Named Relative = iota
	Today
	Tomorrow
	Yesterday
)

var relativeDays = map[string]Relative{
	"hoy": Today, "today": Today,
	"manana": Tomorrow, "tomorrow": Tomorrow,
	"ayer": Yesterday, "yesterday": Yesterday,
}

// ParseDay resolves "hoy", "mañana", "ayer" or a weekday name in Spanish or
// English relative to now. An empty request means today.
func ParseDay(s string, now time.Time) (time.Weekday, Relative, bool) {
	key := Normalize(s)
	if key == "" {
		return now.Weekday(), Today, true
	}
	if rel, ok := relativeDays[key]; ok {
		switch rel {
		case Tomorrow:
			return now.AddDate(0, 0, 1).Weekday(), rel, true
		case Yesterday:
			return now.AddDate(0, 0, -1).Weekday(), rel, true
		default:
			return now.Weekday(), rel, true
		}
	}
	for _, day := range Weekdays {
		if key == Normalize(day.Name) || key == Normalize(day.Weekday.String()) {
			return day.Weekday, Named, true
		}
	}
	return 0, Named, false
}
