package domain

import (
	"strings"
	"time"

	"github.com/smallbiznis/console/internal/money"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusOpen          InvoiceStatus = "open"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusVoid          InvoiceStatus = "void"
	InvoiceStatusUncollectible InvoiceStatus = "uncollectible"
)

func NormalizeStatus(raw string) InvoiceStatus {
	return InvoiceStatus(strings.ToLower(strings.TrimSpace(raw)))
}

// Invoice is a processor invoice as listed by the backend.
// AmountDue is reported in minor units while AmountPaid already arrives in
// major units; the field types carry that difference.
type Invoice struct {
	ID               string
	Number           string
	Status           InvoiceStatus
	AmountDue        money.MinorUnits
	AmountPaid       money.MajorUnits
	Currency         string
	Created          time.Time
	HostedInvoiceURL string
}

// ListRequest filters the invoice list.
type ListRequest struct {
	Status string
}
