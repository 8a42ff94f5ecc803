// ABOUTME: Sponsor matching for imported mail and calendar items
// ABOUTME: Maps contact emails, billing emails and company domains to sponsor ids
package sync

import (
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/models"
)

type SponsorMatcher struct {
	byEmail  map[string]uuid.UUID
	byDomain map[string]uuid.UUID
}

// NewSponsorMatcher indexes the sponsors. When two sponsors share a domain the
// first one keeps it; exact email matches always win.
func NewSponsorMatcher(sponsors []models.Sponsor) *SponsorMatcher {
	m := &SponsorMatcher{
		byEmail:  make(map[string]uuid.UUID),
		byDomain: make(map[string]uuid.UUID),
	}

	for i := range sponsors {
		s := &sponsors[i]

		emails := []string{s.Billing.Email}
		for _, c := range s.ContactPersons {
			emails = append(emails, c.Email)
		}
		for _, e := range emails {
			email := normalizeEmail(e)
			if email == "" {
				continue
			}
			m.byEmail[email] = s.ID
			m.addDomain(extractDomain(email), s.ID)
		}

		m.addDomain(websiteDomain(s.Website), s.ID)
	}

	return m
}

func (m *SponsorMatcher) addDomain(domain string, id uuid.UUID) {
	if domain == "" || isCommonEmailDomain(domain) {
		return
	}
	if _, taken := m.byDomain[domain]; !taken {
		m.byDomain[domain] = id
	}
}

// Match finds the sponsor an address belongs to.
func (m *SponsorMatcher) Match(email string) (uuid.UUID, bool) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return uuid.Nil, false
	}
	if id, ok := m.byEmail[normalized]; ok {
		return id, true
	}
	id, ok := m.byDomain[extractDomain(normalized)]
	return id, ok
}

// normalizeEmail converts email to lowercase for comparison.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// extractDomain extracts domain from email address.
func extractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// websiteDomain reduces "https://www.acme.no/about" to "acme.no".
func websiteDomain(website string) string {
	w := strings.ToLower(strings.TrimSpace(website))
	w = strings.TrimPrefix(w, "https://")
	w = strings.TrimPrefix(w, "http://")
	w = strings.TrimPrefix(w, "www.")
	if i := strings.IndexAny(w, "/?#:"); i >= 0 {
		w = w[:i]
	}
	return w
}

// isCommonEmailDomain checks if domain is a common email provider (not company-specific)
func isCommonEmailDomain(domain string) bool {
	switch strings.ToLower(domain) {
	case "gmail.com", "googlemail.com", "yahoo.com", "hotmail.com", "outlook.com",
		"live.com", "msn.com", "icloud.com", "me.com", "mac.com", "aol.com",
		"protonmail.com", "pm.me", "online.no":
		return true
	}
	return false
}
