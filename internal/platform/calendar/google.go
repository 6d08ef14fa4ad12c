package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	oauthjwt "golang.org/x/oauth2/jwt"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Google is a Port backed by the Google Calendar API, authenticated as a
// service account that has write access to every clinic calendar.
type Google struct {
	svc      *gcal.Service
	timezone string
	logger   zerolog.Logger
}

// NewGoogle builds the API client from service-account credentials.
func NewGoogle(ctx context.Context, clientEmail, privateKey, timezone string, logger zerolog.Logger) (*Google, error) {
	conf := &oauthjwt.Config{
		Email:      clientEmail,
		PrivateKey: []byte(privateKey),
		Scopes:     []string{gcal.CalendarScope},
		TokenURL:   google.JWTTokenURL,
	}
	svc, err := gcal.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Google{svc: svc, timezone: timezone, logger: logger}, nil
}

func (g *Google) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error) {
	var out []Event
	call := g.svc.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		ShowDeleted(false)
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			out = append(out, fromGoogle(item))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events on %s: %w", calendarID, err)
	}
	return out, nil
}

func (g *Google) CreateEvent(ctx context.Context, calendarID string, ev NewEvent, id string) (string, error) {
	existing, err := g.ListEvents(ctx, calendarID, ev.Start, ev.End)
	if err != nil {
		return "", err
	}
	if Overlaps(existing, ev.Start, ev.End) {
		return "", ErrConflict
	}

	created, err := g.svc.Events.Insert(calendarID, &gcal.Event{
		Id:          id,
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: g.timezone},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: g.timezone},
	}).Context(ctx).Do()
	if err != nil {
		if apiStatus(err) == http.StatusConflict {
			return "", ErrConflict
		}
		return "", fmt.Errorf("insert event on %s: %w", calendarID, err)
	}
	g.logger.Debug().Str("calendar", calendarID).Str("event_id", created.Id).Msg("calendar event created")
	return created.Id, nil
}

func (g *Google) DeleteEvent(ctx context.Context, calendarID, id string) error {
	err := g.svc.Events.Delete(calendarID, id).Context(ctx).Do()
	if err != nil {
		switch apiStatus(err) {
		case http.StatusNotFound, http.StatusGone:
			return ErrEventNotFound
		}
		return fmt.Errorf("delete event %s on %s: %w", id, calendarID, err)
	}
	return nil
}

func fromGoogle(item *gcal.Event) Event {
	ev := Event{ID: item.Id, Title: item.Summary, Description: item.Description}
	if item.Start != nil {
		ev.Start = Moment{DateTime: item.Start.DateTime, Date: item.Start.Date}
	}
	if item.End != nil {
		ev.End = Moment{DateTime: item.End.DateTime, Date: item.End.Date}
	}
	return ev
}

func apiStatus(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
