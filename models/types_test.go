// ABOUTME: Tests for sponsor data models
// ABOUTME: Validates primary contact selection
package models

import (
	"testing"
)

func TestPrimaryContactPrefersFlagged(t *testing.T) {
	sponsor := &Sponsor{
		Name: "Acme",
		ContactPersons: []ContactPerson{
			{Name: "First", Email: "first@acme.test"},
			{Name: "Boss", Email: "boss@acme.test", IsPrimary: true},
		},
	}

	contact := sponsor.PrimaryContact()
	if contact == nil {
		t.Fatal("expected a primary contact")
	}
	if contact.Name != "Boss" {
		t.Errorf("expected Boss, got %s", contact.Name)
	}
}

func TestPrimaryContactFallsBackToFirst(t *testing.T) {
	sponsor := &Sponsor{
		ContactPersons: []ContactPerson{{Name: "Only"}},
	}

	if got := sponsor.PrimaryContact(); got == nil || got.Name != "Only" {
		t.Errorf("expected fallback to first contact, got %+v", got)
	}

	empty := &Sponsor{}
	if empty.PrimaryContact() != nil {
		t.Error("expected nil contact for sponsor without contacts")
	}
}
