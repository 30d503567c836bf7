package calendar

import (
	"strings"

	"google.golang.org/api/calendar/v3"
)

// EventTimes returns the start and end of an event. All-day events report
// their dates.
func EventTimes(event *calendar.Event) (start, end string) {
	if event.Start != nil {
		start = event.Start.DateTime
		if start == "" {
			start = event.Start.Date
		}
	}
	if event.End != nil {
		end = event.End.DateTime
		if end == "" {
			end = event.End.Date
		}
	}
	return start, end
}

// AttendeeNames lists attendees by display name, falling back to email.
func AttendeeNames(event *calendar.Event) []string {
	var names []string
	for _, a := range event.Attendees {
		switch {
		case a.DisplayName != "":
			names = append(names, a.DisplayName)
		case a.Email != "":
			names = append(names, a.Email)
		}
	}
	return names
}

// Summary renders an event as a few lines of text.
func Summary(event *calendar.Event) string {
	var parts []string
	if event.Summary != "" {
		parts = append(parts, event.Summary)
	}
	if start, end := EventTimes(event); start != "" {
		parts = append(parts, start+" - "+end)
	}
	if event.Location != "" {
		parts = append(parts, "Location: "+event.Location)
	}
	if names := AttendeeNames(event); len(names) > 0 {
		parts = append(parts, "Attendees: "+strings.Join(names, ", "))
	}
	return strings.Join(parts, "\n")
}

// OrganiserEmail returns the organiser email, if any.
func OrganiserEmail(event *calendar.Event) string {
	if event.Organizer != nil { //nolint:misspell // Google API field name
		return event.Organizer.Email //nolint:misspell // Google API field name
	}
	return ""
}
