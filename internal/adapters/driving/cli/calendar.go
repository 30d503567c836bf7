package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gspace/internal/workspace/calendar"
)

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List calendars",
	RunE:  runCalendars,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List upcoming events",
	Long: `List events from now until --days ahead, ordered by start time.

Examples:
  # Next week on the primary calendar
  gspace events --days 7

  # Search a shared calendar
  gspace events --calendar team@example.com --query standup`,
	RunE: runEvents,
}

var createEventCmd = &cobra.Command{
	Use:   "create-event",
	Short: "Create a calendar event",
	Long: `Create an event. Times are RFC 3339, e.g. 2026-03-01T10:00:00Z.

Examples:
  gspace create-event --summary "Planning" --start 2026-03-01T10:00:00Z --duration 30m
  gspace create-event --summary "Review" --start 2026-03-01T14:00:00+01:00 \
    --end 2026-03-01T15:00:00+01:00 --attendees a@example.com,b@example.com`,
	RunE: runCreateEvent,
}

var (
	calendarsMax int

	eventsCalendar string
	eventsDays     int
	eventsMax      int
	eventsQuery    string

	eventSummary     string
	eventStart       string
	eventEnd         string
	eventDuration    time.Duration
	eventLocation    string
	eventDescription string
	eventAttendees   []string
	eventCalendar    string
	eventTimeZone    string
)

func init() {
	calendarsCmd.Flags().IntVar(&calendarsMax, "max", 50, "maximum calendars to list")

	eventsCmd.Flags().StringVar(&eventsCalendar, "calendar", calendar.PrimaryCalendar, "calendar ID")
	eventsCmd.Flags().IntVar(&eventsDays, "days", 7, "days ahead to look")
	eventsCmd.Flags().IntVar(&eventsMax, "max", 20, "maximum events to list")
	eventsCmd.Flags().StringVarP(&eventsQuery, "query", "q", "", "free text search")

	f := createEventCmd.Flags()
	f.StringVar(&eventSummary, "summary", "", "event title (required)")
	f.StringVar(&eventStart, "start", "", "start time, RFC 3339 (required)")
	f.StringVar(&eventEnd, "end", "", "end time, RFC 3339")
	f.DurationVar(&eventDuration, "duration", time.Hour, "length when --end is not given")
	f.StringVar(&eventLocation, "location", "", "location")
	f.StringVar(&eventDescription, "description", "", "description")
	f.StringSliceVar(&eventAttendees, "attendees", nil, "attendee emails (comma-separated)")
	f.StringVar(&eventCalendar, "calendar", calendar.PrimaryCalendar, "calendar ID")
	f.StringVar(&eventTimeZone, "timezone", calendar.DefaultTimeZone, "IANA time zone")
	_ = createEventCmd.MarkFlagRequired("summary")
	_ = createEventCmd.MarkFlagRequired("start")

	rootCmd.AddCommand(calendarsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(createEventCmd)
}

func runCalendars(cmd *cobra.Command, _ []string) error {
	gs, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer gs.Close()

	ctx := commandContext(cmd)
	svc, err := gs.Calendar(ctx)
	if err != nil {
		return err
	}
	items, err := svc.ListCalendars(ctx, calendarsMax)
	if err != nil {
		return err
	}

	header(cmd, "Calendars")
	if len(items) == 0 {
		cmd.Println("  No calendars.")
		return nil
	}
	for _, c := range items {
		marker := " "
		if c.Primary {
			marker = "*"
		}
		cmd.Printf("  %s %s\n", marker, c.Summary)
		cmd.Printf("    %s %s (%s)\n", labelStyle.Render("ID:"), c.Id, c.AccessRole)
	}
	return nil
}

func runEvents(cmd *cobra.Command, _ []string) error {
	if eventsDays <= 0 {
		return errors.New("--days must be positive")
	}

	gs, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer gs.Close()

	ctx := commandContext(cmd)
	svc, err := gs.Calendar(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	events, err := svc.ListEvents(ctx, calendar.EventListOptions{
		CalendarID: eventsCalendar,
		TimeMin:    now,
		TimeMax:    now.AddDate(0, 0, eventsDays),
		MaxResults: eventsMax,
		Query:      eventsQuery,
	})
	if err != nil {
		return err
	}

	header(cmd, fmt.Sprintf("Events (next %d days)", eventsDays))
	if len(events) == 0 {
		cmd.Println("  No upcoming events.")
		return nil
	}
	for i, event := range events {
		cmd.Printf("\n%d. %s\n", i+1, indent(calendar.Summary(event), "   "))
		if event.HtmlLink != "" {
			cmd.Printf("   %s\n", labelStyle.Render(event.HtmlLink))
		}
	}
	return nil
}

func runCreateEvent(cmd *cobra.Command, _ []string) error {
	start, err := time.Parse(time.RFC3339, eventStart)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	end := start.Add(eventDuration)
	if eventEnd != "" {
		if end, err = time.Parse(time.RFC3339, eventEnd); err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
	}
	if !end.After(start) {
		return errors.New("event must end after it starts")
	}

	gs, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer gs.Close()

	ctx := commandContext(cmd)
	svc, err := gs.Calendar(ctx)
	if err != nil {
		return err
	}
	event, err := svc.CreateEvent(ctx, eventCalendar, calendar.EventInput{
		Summary:     eventSummary,
		Start:       start,
		End:         end,
		Description: eventDescription,
		Location:    eventLocation,
		Attendees:   eventAttendees,
		TimeZone:    eventTimeZone,
	})
	if err != nil {
		return err
	}

	cmd.Println(okStyle.Render("Event created."))
	cmd.Printf("  %s %s\n", labelStyle.Render("ID:"), event.Id)
	if event.HtmlLink != "" {
		cmd.Printf("  %s %s\n", labelStyle.Render("Link:"), event.HtmlLink)
	}
	return nil
}
