package availability

import (
	"strings"
	"testing"
	"time"
)

func TestTime12(t *testing.T) {
	tests := []struct{ in, want string }{
		{"00:00", "12:00 AM"},
		{"09:00", "9:00 AM"},
		{"11:30", "11:30 AM"},
		{"12:00", "12:00 PM"},
		{"13:00", "1:00 PM"},
		{"19:00", "7:00 PM"},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		if got := Time12(tt.in); got != tt.want {
			t.Errorf("Time12(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestRelativeDay(t *testing.T) {
	now := at(2025, time.January, 10, 9, 0)
	tests := []struct {
		date time.Time
		want string
	}{
		{at(2025, time.January, 10, 0, 0), "HOY"},
		{at(2025, time.January, 11, 0, 0), "MAÑANA"},
		{at(2025, time.January, 12, 0, 0), "PASADO MAÑANA"},
		{at(2025, time.January, 9, 0, 0), "HOY MISMO"},
		{at(2025, time.January, 15, 0, 0), "miércoles 15 de enero"},
		{at(2025, time.March, 1, 0, 0), "sábado 1 de marzo"},
	}
	for _, tt := range tests {
		if got := RelativeDay(tt.date, now); got != tt.want {
			t.Errorf("RelativeDay(%s): expected %q, got %q", tt.date.Format("2006-01-02"), tt.want, got)
		}
	}
}

func TestOccupationGrades(t *testing.T) {
	tests := []struct {
		pct            int
		emoji, urgency string
	}{
		{85, "🔴", "¡AGENDA YA!"},
		{60, "🟡", "¡Reserva pronto!"},
		{45, "🟢", ""},
		{10, "✅", "¡Gran disponibilidad!"},
	}
	for _, tt := range tests {
		if got := OccupationEmoji(tt.pct); got != tt.emoji {
			t.Errorf("OccupationEmoji(%d): expected %s, got %s", tt.pct, tt.emoji, got)
		}
		if got := UrgencyText(tt.pct); got != tt.urgency {
			t.Errorf("UrgencyText(%d): expected %q, got %q", tt.pct, tt.urgency, got)
		}
	}
}

func TestLetters(t *testing.T) {
	if Letter(0) != "A" || Letter(25) != "Z" || Letter(26) != "AA" || Letter(27) != "AB" {
		t.Errorf("unexpected letters: %s %s %s %s", Letter(0), Letter(25), Letter(26), Letter(27))
	}
	if LetterEmoji(0) != "Ⓐ" || LetterEmoji(25) != "Ⓩ" {
		t.Errorf("unexpected letter emoji: %s %s", LetterEmoji(0), LetterEmoji(25))
	}
	if LetterEmoji(26) != "27️⃣" {
		t.Errorf("expected keycap fallback, got %s", LetterEmoji(26))
	}
}

func day(d time.Time, occupation int, hs ...int) *DayResult {
	res := &DayResult{Date: d, DateStr: d.Format("2006-01-02"), OccupationPercentage: occupation, DataSource: SourceCalendar}
	for _, h := range hs {
		res.Slots = append(res.Slots, Slot{Hour: h, Date: res.DateStr})
	}
	return res
}

func TestFormatter_Menu(t *testing.T) {
	f := NewFormatter(fixedNow(at(2025, time.January, 10, 9, 0)))
	text, meta := f.Menu([]MenuDay{
		{DayResult: day(at(2025, time.January, 13, 0, 0), 20, 10, 11)},
		{DayResult: day(at(2025, time.January, 14, 0, 0), 80, 16)},
	})

	want := "Lunes 13\nA 10:00 AM\nB 11:00 AM\n\nMartes 14\nC 4:00 PM\n\n\n" + menuFooter
	if text != want {
		t.Errorf("expected\n%q\ngot\n%q", want, text)
	}
	if meta.TotalDays != 2 || meta.TotalSlots != 3 || meta.AverageOccupation != 50 {
		t.Errorf("unexpected totals: %+v", meta)
	}
	c := meta.DateMapping["C"]
	if c.Date != "2025-01-14" || c.Time != "16:00" || c.DayName != "martes 14 de enero" {
		t.Errorf("unexpected mapping for C: %+v", c)
	}
	if !meta.Recommendations.HasHighDemandDay || !meta.Recommendations.HasLowDemandDay || meta.Recommendations.HasEarlierDay {
		t.Errorf("unexpected recommendations: %+v", meta.Recommendations)
	}
	if len(meta.DataSources) != 1 || meta.DataSources[0] != SourceCalendar {
		t.Errorf("expected single calendar source, got %v", meta.DataSources)
	}
}

func TestFormatter_AlternativesMenu(t *testing.T) {
	f := NewFormatter(fixedNow(at(2025, time.January, 10, 9, 0)))
	text, meta := f.AlternativesMenu(at(2025, time.January, 15, 0, 0), []MenuDay{
		{DayResult: day(at(2025, time.January, 14, 0, 0), 90, 19), Direction: DirectionEarlier, Distance: 1},
		{DayResult: day(at(2025, time.January, 18, 0, 0), 0, 10, 11), Direction: DirectionLater, Distance: 3},
	})

	for _, part := range []string{
		"😔 No tengo disponibilidad para *miércoles 15 de enero* (2025-01-15), pero sí tengo para estos días:\n\n",
		"🔴 *MARTES 14 DE ENERO* (2025-01-14)\n📅 1 día antes • 1 horarios disponibles\n\nⒶ 7:00 PM\n",
		"✅ *SÁBADO 18 DE ENERO* (2025-01-18)\n📅 3 días después • 2 horarios disponibles\n\nⒷ 10:00 AM\nⒸ 11:00 AM\n",
	} {
		if !strings.Contains(text, part) {
			t.Errorf("expected text to contain %q, got\n%s", part, text)
		}
	}
	if !strings.HasSuffix(text, menuFooter) {
		t.Error("expected menu footer")
	}
	if b := meta.DateMapping["B"]; b.Date != "2025-01-18" || b.Time != "10:00" {
		t.Errorf("unexpected mapping for B: %+v", b)
	}
	if !meta.Recommendations.HasEarlierDay {
		t.Error("expected hasEarlierDay")
	}
}

func TestCurrentDateText(t *testing.T) {
	got := CurrentDateText(at(2025, time.January, 6, 9, 30))
	want := "lunes, 06 de enero de 2025, 09:30:00 GMT-06:00"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
