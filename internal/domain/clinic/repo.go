package clinic

import (
	"context"
	"errors"
)

var (
	ErrCalendarNotFound = errors.New("calendar not found")
	ErrServiceNotFound  = errors.New("service not found")
)

// Repository is the reference-data store. GetWorkingHoursRule returns
// (nil, nil) when the calendar has no rule for the weekday.
type Repository interface {
	GetCalendar(ctx context.Context, number string) (*Calendar, error)
	ListCalendars(ctx context.Context) ([]*Calendar, error)
	GetService(ctx context.Context, number string) (*Service, error)
	GetWorkingHoursRule(ctx context.Context, calendarNumber string, weekday int) (*WorkingHoursRule, error)

	UpsertCalendar(ctx context.Context, c *Calendar) error
	UpsertService(ctx context.Context, s *Service) error
	UpsertWorkingHours(ctx context.Context, r *WorkingHoursRule) error
}
