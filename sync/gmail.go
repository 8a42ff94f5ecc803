// ABOUTME: Gmail importer for correspondence with sponsor contacts
// ABOUTME: Logs sent and received emails as activities on the sponsor's pipeline records
package sync

import (
	"context"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/harperreed/sponsordesk/models"
	"google.golang.org/api/gmail/v1"
)

const (
	maxGmailResults   = 500 // Gmail API max per page
	defaultImportDays = 30
)

// MessageSource is the part of the Gmail API the importer reads.
type MessageSource interface {
	Profile(ctx context.Context) (string, error)
	ListMessages(ctx context.Context, query string) ([]string, error)
	GetMessage(ctx context.Context, id string) (*gmail.Message, error)
}

type gmailSource struct {
	service *gmail.Service
}

func NewGmailSource(service *gmail.Service) MessageSource {
	return &gmailSource{service: service}
}

func (s *gmailSource) Profile(ctx context.Context) (string, error) {
	profile, err := s.service.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get user profile: %w", err)
	}
	return profile.EmailAddress, nil
}

func (s *gmailSource) ListMessages(ctx context.Context, query string) ([]string, error) {
	var ids []string
	err := s.service.Users.Messages.List("me").
		Q(query).
		MaxResults(maxGmailResults).
		Pages(ctx, func(page *gmail.ListMessagesResponse) error {
			for _, m := range page.Messages {
				ids = append(ids, m.Id)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return ids, nil
}

func (s *gmailSource) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	msg, err := s.service.Users.Messages.Get("me", id).
		Format("metadata").
		MetadataHeaders("From", "To", "Cc", "Subject", "Date").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	return msg, nil
}

// ImportGmail logs emails exchanged with sponsor contacts since the last run.
// days bounds the first run.
func (im *Importer) ImportGmail(ctx context.Context, src MessageSource, days int) (*Result, error) {
	if days <= 0 {
		days = defaultImportDays
	}

	return im.run(ctx, JobGmailImport, func(matcher *SponsorMatcher, result *Result) error {
		userEmail, err := src.Profile(ctx)
		if err != nil {
			return err
		}
		since, err := im.since(ctx, JobGmailImport, days)
		if err != nil {
			return err
		}

		ids, err := src.ListMessages(ctx, BuildQuery(since))
		if err != nil {
			return err
		}

		for _, id := range ids {
			msg, err := src.GetMessage(ctx, id)
			if err != nil {
				return err
			}
			result.Scanned++

			item, ok := messageItem(msg, userEmail)
			if !ok {
				result.Skipped++
				continue
			}
			if err := im.log(ctx, matcher, item, result); err != nil {
				return err
			}
		}
		return nil
	})
}

// BuildQuery limits a Gmail search to person-to-person mail after since.
func BuildQuery(since time.Time) string {
	return fmt.Sprintf("after:%d -in:chats -category:promotions -category:social -category:updates", since.Unix())
}

// messageItem turns a message into an activity item, or reports that it
// should be skipped.
func messageItem(msg *gmail.Message, userEmail string) (Item, bool) {
	headers := parseHeaders(msg.Payload)

	from, err := netmail.ParseAddress(headers["From"])
	if err != nil || isAutomatedSender(from.Address) {
		return Item{}, false
	}

	sent := strings.EqualFold(from.Address, userEmail)
	var counterparts []string
	if sent {
		for _, field := range []string{"To", "Cc"} {
			addrs, err := netmail.ParseAddressList(headers[field])
			if err != nil {
				continue
			}
			for _, a := range addrs {
				if !strings.EqualFold(a.Address, userEmail) {
					counterparts = append(counterparts, a.Address)
				}
			}
		}
	} else {
		counterparts = []string{from.Address}
	}
	if len(counterparts) == 0 {
		return Item{}, false
	}

	subject := strings.TrimSpace(headers["Subject"])
	if subject == "" {
		subject = "(no subject)"
	}
	direction, verb := "received", "Email received"
	if sent {
		direction, verb = "sent", "Email sent"
	}

	return Item{
		Source:       SourceGmail,
		ExternalID:   msg.Id,
		Type:         models.ActivityEmail,
		Description:  verb + ": " + subject,
		At:           messageTime(msg, headers["Date"]),
		Counterparts: counterparts,
		Data: map[string]interface{}{
			"gmail_message_id": msg.Id,
			"thread_id":        msg.ThreadId,
			"direction":        direction,
			"from":             from.Address,
		},
	}, true
}

func parseHeaders(part *gmail.MessagePart) map[string]string {
	headers := map[string]string{}
	if part == nil {
		return headers
	}
	for _, h := range part.Headers {
		headers[h.Name] = h.Value
	}
	return headers
}

// messageTime prefers Gmail's receive time over the sender-controlled Date header.
func messageTime(msg *gmail.Message, date string) time.Time {
	if msg.InternalDate > 0 {
		return time.UnixMilli(msg.InternalDate).UTC()
	}
	if t, err := netmail.ParseDate(date); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func isAutomatedSender(email string) bool {
	local := strings.ToLower(strings.Split(email, "@")[0])
	for _, marker := range []string{"noreply", "no-reply", "donotreply", "do-not-reply", "mailer-daemon", "notifications", "bounce"} {
		if strings.Contains(local, marker) {
			return true
		}
	}
	return false
}
