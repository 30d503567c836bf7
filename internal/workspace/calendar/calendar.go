// Package calendar wraps the Google Calendar API: calendars, events,
// attendees and free/busy queries.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/logger"
	"github.com/custodia-labs/gspace/internal/workspace"
)

const (
	// PrimaryCalendar addresses the user's primary calendar.
	PrimaryCalendar = "primary"
	// DefaultMaxResults caps list operations when no limit is given.
	DefaultMaxResults = 250
	// DefaultWindow is how far ahead ListEvents looks without an explicit end.
	DefaultWindow = 30 * 24 * time.Hour
	// DefaultTimeZone is used for new events and calendars.
	DefaultTimeZone = "UTC"

	orderByStartTime = "startTime"
	// Largest page sizes the API accepts.
	maxCalendarListPage = 250
	maxEventsPage       = 2500
)

// Service is a rate-limited Calendar client.
type Service struct {
	api     *calendar.Service
	limiter *workspace.APILimiter
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a Calendar service. A nil limiter gets the default budget.
func New(ctx context.Context, limiter *workspace.APILimiter, opts ...option.ClientOption) (*Service, error) {
	api, err := workspace.NewCalendarService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if limiter == nil {
		limiter = workspace.DefaultAPILimiter(workspace.ServiceCalendar)
	}
	return &Service{
		api:     api,
		limiter: limiter,
		log:     logger.WithComponent("gspace.calendar"),
		now:     time.Now,
	}, nil
}

// API returns the underlying Calendar client.
func (s *Service) API() *calendar.Service {
	return s.api
}

func calendarID(id string) string {
	if id == "" {
		return PrimaryCalendar
	}
	return id
}

// ListCalendars returns the entries of the user's calendar list.
// maxResults is the page size and is capped at 250.
func (s *Service) ListCalendars(ctx context.Context, maxResults int) ([]*calendar.CalendarListEntry, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	maxResults = min(maxResults, maxCalendarListPage)

	var (
		items     []*calendar.CalendarListEntry
		pageToken string
	)
	for {
		call := s.api.CalendarList.List().MaxResults(int64(maxResults))
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := workspace.Call(ctx, s.limiter, "calendarList.list", func(ctx context.Context) (*calendar.CalendarList, error) {
			return call.Context(ctx).Do()
		})
		if err != nil {
			return nil, fmt.Errorf("list calendars: %w", err)
		}
		items = append(items, resp.Items...)
		if pageToken = resp.NextPageToken; pageToken == "" {
			break
		}
	}
	s.log.Info().Int("count", len(items)).Msg("fetched calendars")
	return items, nil
}

// GetCalendar returns a calendar's metadata.
func (s *Service) GetCalendar(ctx context.Context, id string) (*calendar.Calendar, error) {
	cal, err := workspace.Call(ctx, s.limiter, "calendars.get", func(ctx context.Context) (*calendar.Calendar, error) {
		return s.api.Calendars.Get(calendarID(id)).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("get calendar %s: %w", calendarID(id), err)
	}
	return cal, nil
}

// CalendarInput describes a new secondary calendar.
type CalendarInput struct {
	Summary     string
	Description string
	Location    string
	// TimeZone defaults to UTC.
	TimeZone string
}

// CreateCalendar creates a secondary calendar.
func (s *Service) CreateCalendar(ctx context.Context, in CalendarInput) (*calendar.Calendar, error) {
	if in.Summary == "" {
		return nil, fmt.Errorf("calendar summary: %w", domain.ErrInvalidInput)
	}
	cal := &calendar.Calendar{
		Summary:     in.Summary,
		Description: in.Description,
		Location:    in.Location,
		TimeZone:    in.TimeZone,
	}
	if cal.TimeZone == "" {
		cal.TimeZone = DefaultTimeZone
	}

	created, err := workspace.Call(ctx, s.limiter, "calendars.insert", func(ctx context.Context) (*calendar.Calendar, error) {
		return s.api.Calendars.Insert(cal).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("create calendar: %w", err)
	}
	s.log.Info().Str("calendar_id", created.Id).Msg("created calendar")
	return created, nil
}

// DeleteCalendar deletes a secondary calendar.
func (s *Service) DeleteCalendar(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("calendar id: %w", domain.ErrInvalidInput)
	}
	err := s.limiter.Do(ctx, "calendars.delete", func(ctx context.Context) error {
		return s.api.Calendars.Delete(id).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("delete calendar %s: %w", id, err)
	}
	return nil
}

// EventInput describes a new event.
type EventInput struct {
	Summary     string
	Start       time.Time
	End         time.Time
	Description string
	Location    string
	Attendees   []string
	Reminders   *calendar.EventReminders
	// TimeZone defaults to UTC.
	TimeZone string
}

// CreateEvent inserts an event into a calendar.
func (s *Service) CreateEvent(ctx context.Context, calID string, in EventInput) (*calendar.Event, error) {
	if in.Summary == "" {
		return nil, fmt.Errorf("event summary: %w", domain.ErrInvalidInput)
	}
	if in.Start.IsZero() || in.End.IsZero() || in.End.Before(in.Start) {
		return nil, fmt.Errorf("event time range: %w", domain.ErrInvalidInput)
	}
	tz := in.TimeZone
	if tz == "" {
		tz = DefaultTimeZone
	}

	event := &calendar.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Location:    in.Location,
		Start:       &calendar.EventDateTime{DateTime: in.Start.Format(time.RFC3339), TimeZone: tz},
		End:         &calendar.EventDateTime{DateTime: in.End.Format(time.RFC3339), TimeZone: tz},
		Reminders:   in.Reminders,
	}
	for _, email := range in.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	created, err := workspace.Call(ctx, s.limiter, "events.insert", func(ctx context.Context) (*calendar.Event, error) {
		return s.api.Events.Insert(calendarID(calID), event).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.log.Info().Str("event_id", created.Id).Msg("created event")
	return created, nil
}

// GetEvent fetches a single event.
func (s *Service) GetEvent(ctx context.Context, calID, eventID string) (*calendar.Event, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event id: %w", domain.ErrInvalidInput)
	}
	event, err := workspace.Call(ctx, s.limiter, "events.get", func(ctx context.Context) (*calendar.Event, error) {
		return s.api.Events.Get(calendarID(calID), eventID).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return event, nil
}

// EventListOptions filters ListEvents.
type EventListOptions struct {
	CalendarID string
	// TimeMin defaults to now and TimeMax to TimeMin plus DefaultWindow.
	TimeMin    time.Time
	TimeMax    time.Time
	MaxResults int
	// KeepRecurring returns recurring events as a single master event
	// instead of expanding instances. Ordering by start time is then
	// unavailable and OrderBy is ignored.
	KeepRecurring bool
	// OrderBy is startTime or updated. Defaults to startTime.
	OrderBy string
	Query   string
}

// ListEvents lists events in a time window.
func (s *Service) ListEvents(ctx context.Context, opts EventListOptions) ([]*calendar.Event, error) {
	timeMin := opts.TimeMin
	if timeMin.IsZero() {
		timeMin = s.now()
	}
	timeMax := opts.TimeMax
	if timeMax.IsZero() {
		timeMax = timeMin.Add(DefaultWindow)
	}
	limit := opts.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = orderByStartTime
	}
	if opts.KeepRecurring && orderBy == orderByStartTime {
		orderBy = ""
	}

	var (
		events    []*calendar.Event
		pageToken string
	)
	for {
		call := s.api.Events.List(calendarID(opts.CalendarID)).
			TimeMin(timeMin.UTC().Format(time.RFC3339)).
			TimeMax(timeMax.UTC().Format(time.RFC3339)).
			MaxResults(int64(min(limit, maxEventsPage))).
			SingleEvents(!opts.KeepRecurring)
		if orderBy != "" {
			call = call.OrderBy(orderBy)
		}
		if opts.Query != "" {
			call = call.Q(opts.Query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := workspace.Call(ctx, s.limiter, "events.list", func(ctx context.Context) (*calendar.Events, error) {
			return call.Context(ctx).Do()
		})
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		events = append(events, resp.Items...)
		pageToken = resp.NextPageToken
		if pageToken == "" || len(events) >= limit {
			break
		}
	}

	if len(events) > limit {
		events = events[:limit]
	}
	s.log.Info().Int("count", len(events)).Msg("fetched events")
	return events, nil
}

// UpdateEvent patches an event with the non-empty fields of patch.
func (s *Service) UpdateEvent(ctx context.Context, calID, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	if eventID == "" || patch == nil {
		return nil, fmt.Errorf("update event: %w", domain.ErrInvalidInput)
	}
	updated, err := workspace.Call(ctx, s.limiter, "events.patch", func(ctx context.Context) (*calendar.Event, error) {
		return s.api.Events.Patch(calendarID(calID), eventID, patch).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("update event %s: %w", eventID, err)
	}
	return updated, nil
}

// DeleteEvent deletes an event. sendUpdates is all, externalOnly or none and
// defaults to all.
func (s *Service) DeleteEvent(ctx context.Context, calID, eventID, sendUpdates string) error {
	if sendUpdates == "" {
		sendUpdates = "all"
	}
	err := s.limiter.Do(ctx, "events.delete", func(ctx context.Context) error {
		return s.api.Events.Delete(calendarID(calID), eventID).SendUpdates(sendUpdates).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	s.log.Info().Str("event_id", eventID).Msg("deleted event")
	return nil
}

// FreeBusy queries busy intervals for the given calendars.
func (s *Service) FreeBusy(ctx context.Context, timeMin, timeMax time.Time, calendarIDs ...string) (*calendar.FreeBusyResponse, error) {
	if len(calendarIDs) == 0 {
		calendarIDs = []string{PrimaryCalendar}
	}
	req := &calendar.FreeBusyRequest{
		TimeMin: timeMin.UTC().Format(time.RFC3339),
		TimeMax: timeMax.UTC().Format(time.RFC3339),
	}
	for _, id := range calendarIDs {
		req.Items = append(req.Items, &calendar.FreeBusyRequestItem{Id: id})
	}

	resp, err := workspace.Call(ctx, s.limiter, "freebusy.query", func(ctx context.Context) (*calendar.FreeBusyResponse, error) {
		return s.api.Freebusy.Query(req).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("query free/busy: %w", err)
	}
	return resp, nil
}

// AddAttendee invites email to an event. An existing attendee leaves the
// event unchanged.
func (s *Service) AddAttendee(ctx context.Context, calID, eventID, email string) (*calendar.Event, error) {
	event, err := s.GetEvent(ctx, calID, eventID)
	if err != nil {
		return nil, err
	}
	for _, a := range event.Attendees {
		if strings.EqualFold(a.Email, email) {
			s.log.Info().Str("email", email).Msg("attendee already present")
			return event, nil
		}
	}

	attendees := append(event.Attendees, &calendar.EventAttendee{Email: email})
	return s.UpdateEvent(ctx, calID, eventID, &calendar.Event{Attendees: attendees})
}

// RemoveAttendee removes email from an event. An event without that
// attendee is returned unchanged.
func (s *Service) RemoveAttendee(ctx context.Context, calID, eventID, email string) (*calendar.Event, error) {
	event, err := s.GetEvent(ctx, calID, eventID)
	if err != nil {
		return nil, err
	}

	kept := make([]*calendar.EventAttendee, 0, len(event.Attendees))
	for _, a := range event.Attendees {
		if !strings.EqualFold(a.Email, email) {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(event.Attendees) {
		return event, nil
	}

	// An empty list must still be sent to clear the last attendee.
	patch := &calendar.Event{Attendees: kept, ForceSendFields: []string{"Attendees"}}
	return s.UpdateEvent(ctx, calID, eventID, patch)
}
