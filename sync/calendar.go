// ABOUTME: Calendar importer for meetings with sponsor contacts
// ABOUTME: Logs past timed events that sponsor attendees joined as meeting activities
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/sponsordesk/models"
	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
)

const maxResults = 250 // Google Calendar API max per page

// EventSource is the part of the Calendar API the importer reads.
type EventSource interface {
	ListEvents(ctx context.Context, since, until time.Time) ([]*calendar.Event, error)
}

type calendarSource struct {
	service *calendar.Service
}

func NewCalendarSource(service *calendar.Service) EventSource {
	return &calendarSource{service: service}
}

func (s *calendarSource) ListEvents(ctx context.Context, since, until time.Time) ([]*calendar.Event, error) {
	var events []*calendar.Event
	err := s.service.Events.List("primary").
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(since.Format(time.RFC3339)).
		TimeMax(until.Format(time.RFC3339)).
		MaxResults(maxResults).
		Pages(ctx, func(page *calendar.Events) error {
			events = append(events, page.Items...)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// ImportCalendar logs meetings held with sponsor contacts since the last run.
func (im *Importer) ImportCalendar(ctx context.Context, src EventSource, days int) (*Result, error) {
	if days <= 0 {
		days = defaultImportDays
	}

	return im.run(ctx, JobCalendarImport, func(matcher *SponsorMatcher, result *Result) error {
		since, err := im.since(ctx, JobCalendarImport, days)
		if err != nil {
			return err
		}

		events, err := src.ListEvents(ctx, since, im.clock.Now())
		if err != nil {
			return err
		}

		for _, event := range events {
			result.Scanned++
			if skip, reason := shouldSkipEvent(event); skip {
				im.logger.Debug("skipping event", zap.String("reason", reason))
				result.Skipped++
				continue
			}
			if err := im.log(ctx, matcher, eventItem(event), result); err != nil {
				return err
			}
		}
		return nil
	})
}

// shouldSkipEvent determines if an event should be skipped during import
// Returns (true, reason) if the event should be skipped, (false, "") otherwise
func shouldSkipEvent(event *calendar.Event) (bool, string) {
	if event == nil {
		return true, "nil event"
	}
	if event.Start == nil || event.Start.DateTime == "" {
		return true, "all-day or undated event"
	}
	if event.Status == "cancelled" {
		return true, "cancelled"
	}

	others := 0
	for _, attendee := range event.Attendees {
		if attendee.Self {
			if attendee.ResponseStatus == "declined" {
				return true, "declined"
			}
			continue
		}
		if !attendee.Resource {
			others++
		}
	}
	if others == 0 {
		return true, "solo event"
	}

	return false, ""
}

func eventItem(event *calendar.Event) Item {
	var counterparts []string
	for _, attendee := range event.Attendees {
		if !attendee.Self && !attendee.Resource && attendee.ResponseStatus != "declined" {
			counterparts = append(counterparts, attendee.Email)
		}
	}

	at, _ := time.Parse(time.RFC3339, event.Start.DateTime)
	summary := strings.TrimSpace(event.Summary)
	if summary == "" {
		summary = "(untitled)"
	}

	return Item{
		Source:       SourceCalendar,
		ExternalID:   event.Id,
		Type:         models.ActivityMeeting,
		Description:  "Meeting: " + summary,
		At:           at.UTC(),
		Counterparts: counterparts,
		Data: map[string]interface{}{
			"calendar_event_id": event.Id,
			"html_link":         event.HtmlLink,
			"attendees":         len(event.Attendees),
		},
	}
}
