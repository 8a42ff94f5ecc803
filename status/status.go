// ABOUTME: Status transition validation for the four sponsor pipeline axes
// ABOUTME: Validates candidate values and describes the activity and timestamp side effects
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/models"
)

// Axis names one of the independent status enumerations on a pipeline record.
type Axis string

const (
	AxisPipeline  Axis = "pipeline"
	AxisContract  Axis = "contract"
	AxisSignature Axis = "signature"
	AxisInvoice   Axis = "invoice"
)

// Pipeline values.
const (
	Prospect    = "prospect"
	Contacted   = "contacted"
	Negotiating = "negotiating"
	ClosedWon   = "closed-won"
	ClosedLost  = "closed-lost"
)

// Contract values.
const (
	ContractNone            = "none"
	ContractVerbalAgreement = "verbal-agreement"
	ContractSent            = "contract-sent"
	ContractSigned          = "contract-signed"
)

// Signature values.
const (
	SignatureNotStarted = "not-started"
	SignaturePending    = "pending"
	SignatureSigned     = "signed"
	SignatureRejected   = "rejected"
	SignatureExpired    = "expired"
)

// Invoice values.
const (
	InvoiceNotSent   = "not-sent"
	InvoiceSent      = "sent"
	InvoicePaid      = "paid"
	InvoiceOverdue   = "overdue"
	InvoiceCancelled = "cancelled"
)

// Timestamp fields a transition may stamp.
const (
	StampContactInitiated = "contact_initiated_at"
	StampContractSent     = "contract_sent_at"
	StampContractSigned   = "contract_signed_at"
	StampInvoiceSent      = "invoice_sent_at"
	StampInvoicePaid      = "invoice_paid_at"
)

var axisValues = map[Axis][]string{
	AxisPipeline:  {Prospect, Contacted, Negotiating, ClosedWon, ClosedLost},
	AxisContract:  {ContractNone, ContractVerbalAgreement, ContractSent, ContractSigned},
	AxisSignature: {SignatureNotStarted, SignaturePending, SignatureSigned, SignatureRejected, SignatureExpired},
	AxisInvoice:   {InvoiceNotSent, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled},
}

var axisActivity = map[Axis]string{
	AxisPipeline:  models.ActivityStageChange,
	AxisContract:  models.ActivityContractStatusChange,
	AxisSignature: models.ActivitySignatureStatusChange,
	AxisInvoice:   models.ActivityInvoiceStatusChange,
}

var axisLabel = map[Axis]string{
	AxisPipeline:  "Status",
	AxisContract:  "Contract status",
	AxisSignature: "Signature status",
	AxisInvoice:   "Invoice status",
}

// Axes lists every axis in display order.
func Axes() []Axis {
	return []Axis{AxisPipeline, AxisContract, AxisSignature, AxisInvoice}
}

// Values returns the allowed values of an axis, in pipeline order.
func Values(axis Axis) []string {
	return append([]string(nil), axisValues[axis]...)
}

// ParseAxis accepts an axis name from user input.
func ParseAxis(s string) (Axis, error) {
	axis := Axis(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := axisValues[axis]; !ok {
		return "", apperr.InvalidField("axis", fmt.Sprintf("unknown axis %q (valid: pipeline, contract, signature, invoice)", s))
	}
	return axis, nil
}

// Validate checks that value is allowed on axis. Cross-axis ordering is not
// enforced: signature=pending with contract=none is accepted.
func Validate(axis Axis, value string) error {
	values, ok := axisValues[axis]
	if !ok {
		return apperr.InvalidField("axis", fmt.Sprintf("unknown axis %q", axis))
	}
	for _, v := range values {
		if v == value {
			return nil
		}
	}
	return apperr.InvalidField(string(axis), fmt.Sprintf("invalid value %q (valid: %s)", value, strings.Join(values, ", ")))
}

// IsTerminal reports whether value ends the sales funnel.
func IsTerminal(axis Axis, value string) bool {
	return axis == AxisPipeline && (value == ClosedWon || value == ClosedLost)
}

// Change describes an accepted transition so the caller can commit the new
// value, its timestamp stamp and the activity entry in one write.
type Change struct {
	Axis         Axis
	Old          string
	New          string
	ActivityType string
	Description  string
	// Stamp names the timestamp field to set, or "" for none.
	Stamp string
}

// Transition validates next for axis and describes the resulting change.
func Transition(axis Axis, old, next string) (Change, error) {
	if err := Validate(axis, next); err != nil {
		return Change{}, err
	}
	return Change{
		Axis:         axis,
		Old:          old,
		New:          next,
		ActivityType: axisActivity[axis],
		Description:  fmt.Sprintf("%s changed from %s to %s", axisLabel[axis], display(old), next),
		Stamp:        stampFor(axis, next),
	}, nil
}

// NoOp reports whether the change leaves the value as it was.
func (c Change) NoOp() bool {
	return c.Old == c.New
}

// Get reads the axis value from a record.
func Get(rec *models.SponsorForConference, axis Axis) string {
	switch axis {
	case AxisPipeline:
		return rec.Status
	case AxisContract:
		return rec.ContractStatus
	case AxisSignature:
		return rec.SignatureStatus
	case AxisInvoice:
		return rec.InvoiceStatus
	}
	return ""
}

// Set writes the axis value on a record.
func Set(rec *models.SponsorForConference, axis Axis, value string) {
	switch axis {
	case AxisPipeline:
		rec.Status = value
	case AxisContract:
		rec.ContractStatus = value
	case AxisSignature:
		rec.SignatureStatus = value
	case AxisInvoice:
		rec.InvoiceStatus = value
	}
}

func stampFor(axis Axis, value string) string {
	switch {
	case axis == AxisPipeline && value == Contacted:
		return StampContactInitiated
	case axis == AxisContract && value == ContractSent:
		return StampContractSent
	case axis == AxisContract && value == ContractSigned:
		return StampContractSigned
	case axis == AxisInvoice && value == InvoiceSent:
		return StampInvoiceSent
	case axis == AxisInvoice && value == InvoicePaid:
		return StampInvoicePaid
	}
	return ""
}

func display(v string) string {
	if v == "" {
		return "(unset)"
	}
	return v
}

// Apply writes the new value and its timestamp side effect onto rec.
// contact_initiated_at is only stamped the first time.
func (c Change) Apply(rec *models.SponsorForConference, now time.Time) {
	Set(rec, c.Axis, c.New)
	t := now
	switch c.Stamp {
	case StampContactInitiated:
		if rec.ContactInitiatedAt == nil {
			rec.ContactInitiatedAt = &t
		}
	case StampContractSent:
		rec.ContractSentAt = &t
	case StampContractSigned:
		rec.ContractSignedAt = &t
	case StampInvoiceSent:
		rec.InvoiceSentAt = &t
	case StampInvoicePaid:
		rec.InvoicePaidAt = &t
	}
}

// Activity builds the history entry describing the change.
func (c Change) Activity(recordID uuid.UUID, actor string, now time.Time) *models.Activity {
	t := now
	return &models.Activity{
		SponsorForConferenceID: recordID,
		Type:                   c.ActivityType,
		Description:            c.Description,
		Metadata: models.ActivityMetadata{
			OldValue:       c.Old,
			NewValue:       c.New,
			Timestamp:      &t,
			AdditionalData: map[string]interface{}{"axis": string(c.Axis)},
		},
		CreatedBy: actor,
		CreatedAt: now,
	}
}
