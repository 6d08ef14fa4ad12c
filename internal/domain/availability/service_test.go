package availability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestQuery_Messages(t *testing.T) {
	tests := []struct {
		name     string
		calendar string
		service  string
		date     string
		want     string
	}{
		{"missing params", "", "", "2025-01-13", msgMissingParams},
		{"bad date", "", "1", "13/01/2025", msgBadDate},
		{"unknown calendar", "9", "1", "2025-01-13", msgCalendarMissing},
		{"unknown service", "1", "9", "2025-01-13", msgServiceMissing},
		{"past date", "1", "1", "2025-01-09", msgPastDate},
		{"too far ahead", "1", "1", "2025-06-01", "⚠️ Solo puedes consultar fechas dentro de los próximos 90 días."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(at(2025, time.January, 10, 8, 0))
			resp, err := f.svc.Query(context.Background(), tt.calendar, tt.service, tt.date)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.HasPrefix(resp.Respuesta, tt.want) {
				t.Errorf("expected %q, got %q", tt.want, resp.Respuesta)
			}
			if resp.Metadata != nil {
				t.Error("expected no metadata")
			}
		})
	}
}

func TestQuery_Sunday(t *testing.T) {
	f := newFixture(at(2025, time.January, 10, 8, 0))

	resp, err := f.svc.Query(context.Background(), "1", "1", "2025-01-12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "😔 Los días domingos no contamos con servicio, puedes consultar el día **lunes 13 de enero** (2025-01-13) a las **10:00 AM**."
	if !strings.HasPrefix(resp.Respuesta, want) {
		t.Errorf("expected prefix %q, got %q", want, resp.Respuesta)
	}
}

func TestQuery_PrimaryMenu(t *testing.T) {
	f := newFixture(at(2025, time.January, 10, 8, 0))
	f.busy(at(2025, time.January, 13, 10, 0), at(2025, time.January, 13, 11, 0))

	resp, err := f.svc.Query(context.Background(), "", "1", "2025-01-13")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(resp.Respuesta, "Lunes 13\nA 11:00 AM\n") {
		t.Errorf("unexpected menu start: %q", resp.Respuesta)
	}
	if resp.Metadata == nil {
		t.Fatal("expected metadata")
	}
	if resp.Metadata.TotalDays != 3 || resp.Metadata.TotalSlots != 26 {
		t.Errorf("expected 3 days and 26 slots, got %d and %d", resp.Metadata.TotalDays, resp.Metadata.TotalSlots)
	}
	if a := resp.Metadata.DateMapping["A"]; a.Date != "2025-01-13" || a.Time != "11:00" {
		t.Errorf("unexpected mapping for A: %+v", a)
	}
}

func TestQuery_Alternatives(t *testing.T) {
	f := newFixture(at(2025, time.January, 10, 8, 0))
	for _, d := range []int{15, 16, 17} {
		f.blockDay(at(2025, time.January, d, 0, 0))
	}

	resp, err := f.svc.Query(context.Background(), "1", "1", "2025-01-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(resp.Respuesta, "😔 No tengo disponibilidad para *miércoles 15 de enero* (2025-01-15)") {
		t.Errorf("unexpected respuesta: %q", resp.Respuesta)
	}
	if resp.Metadata == nil || !resp.Metadata.Recommendations.HasEarlierDay {
		t.Errorf("expected earlier day in metadata, got %+v", resp.Metadata)
	}
}

func TestQuery_ClosedDay(t *testing.T) {
	f := newFixture(at(2025, time.January, 10, 8, 0))
	delete(f.rules.rules, 3)

	resp, err := f.svc.Query(context.Background(), "1", "1", "2025-01-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "🚫 No hay servicio para miércoles 15 de enero. Por favor, elige otra fecha."
	if resp.Respuesta != want {
		t.Errorf("expected %q, got %q", want, resp.Respuesta)
	}
}

func TestQuery_CollaboratorError(t *testing.T) {
	f := newFixture(at(2025, time.January, 10, 8, 0))
	f.rules.err = errors.New("db down")

	if _, err := f.svc.Query(context.Background(), "1", "1", "2025-01-15"); err == nil {
		t.Error("expected error from policy store")
	}
}

func TestDiagnose(t *testing.T) {
	f := newFixture(at(2025, time.January, 10, 8, 0))
	f.busy(at(2025, time.January, 15, 11, 0), at(2025, time.January, 15, 12, 0))
	f.busy(at(2025, time.January, 15, 11, 15), at(2025, time.January, 15, 11, 45))

	out, err := f.svc.Diagnose(context.Background(), ModeDay, "", "", "2025-01-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Days) != 1 || len(out.Days[0].Busy) != 2 {
		t.Fatalf("expected one day with 2 busy intervals, got %+v", out.Days)
	}
	for _, c := range out.Days[0].Checks {
		if c.Hour == 11 && c.Overlapping != 2 {
			t.Errorf("expected 2 simultaneous events at 11:00, got %d", c.Overlapping)
		}
	}

	if _, err := f.svc.Diagnose(context.Background(), "bogus", "", "", ""); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
	if _, err := f.svc.Diagnose(context.Background(), ModeNext, "", "", "15-01-2025"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}
