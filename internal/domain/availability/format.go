package availability

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	weekdaysES = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	monthsES   = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio",
		"agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// WeekdayES returns the lowercase Spanish weekday name.
func WeekdayES(t time.Time) string { return weekdaysES[t.Weekday()] }

// MonthES returns the lowercase Spanish month name.
func MonthES(t time.Time) string { return monthsES[t.Month()-1] }

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// DayHeader renders "Lunes 15".
func DayHeader(t time.Time) string {
	return fmt.Sprintf("%s %d", capitalize(WeekdayES(t)), t.Day())
}

// LongDate renders "lunes, 6 de enero de 2025".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%s, %d de %s de %d", WeekdayES(t), t.Day(), MonthES(t), t.Year())
}

// RelativeDay names date relative to now: HOY, MAÑANA, PASADO MAÑANA,
// "HOY MISMO" for yesterday, otherwise "lunes 15 de enero".
func RelativeDay(date, now time.Time) string {
	date = startOfDay(date.In(now.Location()))
	today := startOfDay(now)
	switch {
	case date.Equal(today):
		return "HOY"
	case date.Equal(today.AddDate(0, 0, 1)):
		return "MAÑANA"
	case date.Equal(today.AddDate(0, 0, -1)):
		return "HOY MISMO"
	case date.Equal(today.AddDate(0, 0, 2)):
		return "PASADO MAÑANA"
	}
	return fmt.Sprintf("%s %d de %s", WeekdayES(date), date.Day(), MonthES(date))
}

// Hour12 renders an hour as "10:00 AM" / "1:00 PM".
func Hour12(h int) string {
	return Time12(fmt.Sprintf("%02d:00", h))
}

// Time12 converts "HH:MM" into 12 hour form. Unparseable input is returned
// unchanged.
func Time12(hhmm string) string {
	hs, mm, ok := strings.Cut(hhmm, ":")
	if !ok {
		return hhmm
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return hhmm
	}
	switch {
	case h == 0:
		return "12:" + mm + " AM"
	case h < 12:
		return fmt.Sprintf("%d:%s AM", h, mm)
	case h == 12:
		return "12:" + mm + " PM"
	default:
		return fmt.Sprintf("%d:%s PM", h-12, mm)
	}
}

// OccupationEmoji grades a day by occupation percentage.
func OccupationEmoji(pct int) string {
	switch {
	case pct >= 80:
		return "🔴"
	case pct >= 60:
		return "🟡"
	case pct >= 40:
		return "🟢"
	}
	return "✅"
}

// UrgencyText is the call to action matching OccupationEmoji.
func UrgencyText(pct int) string {
	switch {
	case pct >= 80:
		return "¡AGENDA YA!"
	case pct >= 60:
		return "¡Reserva pronto!"
	case pct >= 40:
		return ""
	}
	return "¡Gran disponibilidad!"
}

// Letter returns the menu key for index i: A..Z, then AA, AB...
func Letter(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return Letter(i/26-1) + Letter(i%26)
}

// LetterEmoji returns the circled letter for index i, falling back to a
// keycap number past Z.
func LetterEmoji(i int) string {
	if i >= 0 && i < 26 {
		return string(rune('Ⓐ' + i))
	}
	return fmt.Sprintf("%d️⃣", i+1)
}

// MenuEntry is what a menu letter stands for.
type MenuEntry struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	DayName string `json:"dayName"`
}

// Recommendations summarize the days in a menu.
type Recommendations struct {
	HasEarlierDay    bool `json:"hasEarlierDay"`
	HasHighDemandDay bool `json:"hasHighDemandDay"`
	HasLowDemandDay  bool `json:"hasLowDemandDay"`
}

// Metadata accompanies a menu response.
type Metadata struct {
	TotalDays         int                  `json:"totalDays"`
	TotalSlots        int                  `json:"totalSlots"`
	AverageOccupation int                  `json:"averageOccupation"`
	DateMapping       map[string]MenuEntry `json:"dateMapping"`
	Recommendations   Recommendations      `json:"recommendations"`
	DataSources       []string             `json:"dataSources"`
}

// MenuDay is one section of the lettered menu.
type MenuDay struct {
	*DayResult
	Direction string
	Distance  int
}

const menuFooter = "💡 Escribe la letra del horario que prefieras (A, B, C...) ✈️"

// Formatter renders availability for the chat bot.
type Formatter struct {
	now func() time.Time
}

func NewFormatter(now func() time.Time) Formatter {
	if now == nil {
		now = time.Now
	}
	return Formatter{now: now}
}

// Menu lists each day as a "Lunes 15" header followed by lettered slots.
// Letters continue across days.
func (f Formatter) Menu(days []MenuDay) (string, Metadata) {
	var b strings.Builder
	meta := f.metadata(days)
	idx := 0
	for _, d := range days {
		b.WriteString(DayHeader(d.Date))
		b.WriteString("\n")
		f.writeSlots(&b, d, &idx, meta.DateMapping, Letter)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(menuFooter)
	return b.String(), meta
}

// AlternativesMenu explains that requested has no availability and lists
// the alternative days with occupation and distance.
func (f Formatter) AlternativesMenu(requested time.Time, days []MenuDay) (string, Metadata) {
	now := f.now().In(requested.Location())
	var b strings.Builder
	meta := f.metadata(days)
	fmt.Fprintf(&b, "😔 No tengo disponibilidad para *%s* (%s), pero sí tengo para estos días:\n\n",
		RelativeDay(requested, now), requested.Format("2006-01-02"))

	idx := 0
	for _, d := range days {
		fmt.Fprintf(&b, "%s *%s* (%s)\n", OccupationEmoji(d.OccupationPercentage),
			strings.ToUpper(RelativeDay(d.Date, now)), d.DateStr)
		fmt.Fprintf(&b, "%s • %d horarios disponibles\n\n", distanceText(d.Direction, d.Distance), len(d.Slots))
		f.writeSlots(&b, d, &idx, meta.DateMapping, LetterEmoji)
		b.WriteString("\n")
	}
	b.WriteString(menuFooter)
	return b.String(), meta
}

func distanceText(direction string, n int) string {
	unit := "días"
	if n == 1 {
		unit = "día"
	}
	if direction == DirectionEarlier {
		return fmt.Sprintf("📅 %d %s antes", n, unit)
	}
	return fmt.Sprintf("📅 %d %s después", n, unit)
}

// writeSlots prints one line per slot and records it in mapping under its
// plain letter, whatever label renders it.
func (f Formatter) writeSlots(b *strings.Builder, d MenuDay, idx *int, mapping map[string]MenuEntry, label func(int) string) {
	dayName := RelativeDay(d.Date, f.now().In(d.Date.Location()))
	for _, s := range d.Slots {
		mapping[Letter(*idx)] = MenuEntry{Date: d.DateStr, Time: s.Time(), DayName: dayName}
		fmt.Fprintf(b, "%s %s\n", label(*idx), Hour12(s.Hour))
		*idx++
	}
}

func (f Formatter) metadata(days []MenuDay) Metadata {
	meta := Metadata{TotalDays: len(days), DateMapping: make(map[string]MenuEntry)}
	seen := make(map[string]bool)
	occupation := 0
	for _, d := range days {
		meta.TotalSlots += len(d.Slots)
		occupation += d.OccupationPercentage
		if d.Direction == DirectionEarlier {
			meta.Recommendations.HasEarlierDay = true
		}
		if d.OccupationPercentage >= 70 {
			meta.Recommendations.HasHighDemandDay = true
		}
		if d.OccupationPercentage <= 30 {
			meta.Recommendations.HasLowDemandDay = true
		}
		if !seen[d.DataSource] {
			seen[d.DataSource] = true
			meta.DataSources = append(meta.DataSources, d.DataSource)
		}
	}
	if len(days) > 0 {
		meta.AverageOccupation = int(math.Round(float64(occupation) / float64(len(days))))
	}
	return meta
}

// CurrentDateText renders t like "lunes, 06 de enero de 2025, 09:30:00 GMT-06:00".
func CurrentDateText(t time.Time) string {
	return fmt.Sprintf("%s, %02d de %s de %d, %s GMT%s",
		WeekdayES(t), t.Day(), MonthES(t), t.Year(), t.Format("15:04:05"), t.Format("-07:00"))
}
