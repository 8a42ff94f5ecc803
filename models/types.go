// ABOUTME: Data models for sponsor pipeline entities
// ABOUTME: Defines Sponsor, Conference, SponsorForConference, Activity and Asset structs
package models

import (
	"time"

	"github.com/google/uuid"
)

type ContactPerson struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role,omitempty"`
	IsPrimary bool   `json:"is_primary,omitempty"`
}

type BillingInfo struct {
	Email     string `json:"email,omitempty"`
	Reference string `json:"reference,omitempty"`
	Comments  string `json:"comments,omitempty"`
}

type Sponsor struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	Website          string          `json:"website,omitempty"`
	LogoSVG          string          `json:"logo,omitempty"`
	LogoBrightSVG    string          `json:"logo_bright,omitempty"`
	OrgNumber        string          `json:"org_number,omitempty"`
	Address          string          `json:"address,omitempty"`
	ContactPersons   []ContactPerson `json:"contact_persons,omitempty"`
	Billing          BillingInfo     `json:"billing"`
	AgreementAssetID *uuid.UUID      `json:"agreement_asset_id,omitempty"`
	OnboardingToken  string          `json:"-"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// PrimaryContact returns the contact flagged primary, falling back to the first one.
func (s *Sponsor) PrimaryContact() *ContactPerson {
	for i := range s.ContactPersons {
		if s.ContactPersons[i].IsPrimary {
			return &s.ContactPersons[i]
		}
	}
	if len(s.ContactPersons) > 0 {
		return &s.ContactPersons[0]
	}
	return nil
}

// Signing provider kinds, chosen per conference.
const (
	ProviderSelfHosted = "self-hosted"
	ProviderExternal   = "external"
)

type Conference struct {
	ID                 uuid.UUID  `json:"id"`
	Title              string     `json:"title"`
	City               string     `json:"city,omitempty"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	OrganizerName      string     `json:"organizer_name,omitempty"`
	OrganizerEmail     string     `json:"organizer_email,omitempty"`
	SigningProvider    string     `json:"signing_provider"`
	ContractTemplateID *uuid.UUID `json:"contract_template_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Tier kinds.
const (
	TierStandard = "standard"
	TierAddon    = "addon"
)

type Tier struct {
	ID           uuid.UUID `json:"id"`
	ConferenceID uuid.UUID `json:"conference_id"`
	Title        string    `json:"title"`
	Price        int64     `json:"price"`
	Currency     string    `json:"currency"`
	Kind         string    `json:"kind"`
}

type SponsorForConference struct {
	ID                  uuid.UUID   `json:"id"`
	SponsorID           uuid.UUID   `json:"sponsor_id"`
	ConferenceID        uuid.UUID   `json:"conference_id"`
	TierID              *uuid.UUID  `json:"tier_id,omitempty"`
	AddonTierIDs        []uuid.UUID `json:"addon_tier_ids,omitempty"`
	Status              string      `json:"status"`
	ContractStatus      string      `json:"contract_status"`
	SignatureStatus     string      `json:"signature_status"`
	InvoiceStatus       string      `json:"invoice_status"`
	ContractValue       int64       `json:"contract_value,omitempty"` // in minor units
	ContractCurrency    string      `json:"contract_currency"`
	SignerName          string      `json:"signer_name,omitempty"`
	SignerEmail         string      `json:"signer_email,omitempty"`
	SigningURL          string      `json:"signing_url,omitempty"`
	SigningProvider     string      `json:"signing_provider,omitempty"`
	AgreementID         string      `json:"agreement_id,omitempty"`
	PortalToken         string      `json:"-"`
	ReminderCount       int         `json:"reminder_count"`
	Tags                []string    `json:"tags,omitempty"`
	AssignedOrganizerID *uuid.UUID  `json:"assigned_organizer_id,omitempty"`
	ContractAssetID     *uuid.UUID  `json:"contract_asset_id,omitempty"`
	ContractTemplateID  *uuid.UUID  `json:"contract_template_id,omitempty"`
	ContactInitiatedAt  *time.Time  `json:"contact_initiated_at,omitempty"`
	ContractSentAt      *time.Time  `json:"contract_sent_at,omitempty"`
	ContractSignedAt    *time.Time  `json:"contract_signed_at,omitempty"`
	OrganizerSignedAt   *time.Time  `json:"organizer_signed_at,omitempty"`
	OrganizerSignedBy   string      `json:"organizer_signed_by,omitempty"`
	InvoiceSentAt       *time.Time  `json:"invoice_sent_at,omitempty"`
	InvoicePaidAt       *time.Time  `json:"invoice_paid_at,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// Activity types.
const (
	ActivityStageChange           = "stage_change"
	ActivityContractStatusChange  = "contract_status_change"
	ActivitySignatureStatusChange = "signature_status_change"
	ActivityInvoiceStatusChange   = "invoice_status_change"
	ActivityContractSent          = "contract_sent"
	ActivityContractSigned        = "contract_signed"
	ActivityContractReminderSent  = "contract_reminder_sent"
	ActivityEmail                 = "email"
	ActivityNote                  = "note"
	ActivityCall                  = "call"
	ActivityMeeting               = "meeting"
)

type ActivityMetadata struct {
	OldValue       string                 `json:"old_value,omitempty"`
	NewValue       string                 `json:"new_value,omitempty"`
	Timestamp      *time.Time             `json:"timestamp,omitempty"`
	AdditionalData map[string]interface{} `json:"additional_data,omitempty"`
}

type Activity struct {
	ID                     string           `json:"id"`
	SponsorForConferenceID uuid.UUID        `json:"sponsor_for_conference_id"`
	Type                   string           `json:"type"`
	Description            string           `json:"description"`
	Metadata               ActivityMetadata `json:"metadata"`
	CreatedBy              string           `json:"created_by,omitempty"`
	CreatedAt              time.Time        `json:"created_at"`
}

type Asset struct {
	ID         uuid.UUID `json:"id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	SHA256     string    `json:"sha256"`
	StorageKey string    `json:"storage_key"`
	CreatedAt  time.Time `json:"created_at"`
}

// Email template slugs.
const (
	TemplateContractSent     = "contract-sent"
	TemplateContractReminder = "contract-reminder"
	TemplateContractSigned   = "contract-signed"
)

type EmailTemplate struct {
	Slug      string    `json:"slug"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Self-hosted signing token states. They mirror the external provider's
// agreement status vocabulary so callers can treat both the same way.
const (
	AgreementOutForSignature = "OUT_FOR_SIGNATURE"
	AgreementSigned          = "SIGNED"
	AgreementCancelled       = "CANCELLED"
	AgreementExpired         = "EXPIRED"
)

type SigningToken struct {
	Token            string     `json:"token"`
	RecordID         uuid.UUID  `json:"record_id"`
	Name             string     `json:"name"`
	ParticipantEmail string     `json:"participant_email"`
	DocumentKey      string     `json:"document_key,omitempty"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}
