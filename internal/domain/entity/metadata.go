package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata is the category-specific payload attached to an instance.
// Each category carries its own concrete type; the union is converted to
// and from JSON at the store boundary.
type Metadata interface {
	MetadataCategory() string
	// ApplyChanges merges free-form key/value changes supplied on
	// resubmit into the metadata's extra fields.
	ApplyChanges(changes map[string]string)
}

// ExtraFields holds free-form key/value pairs shared by all metadata
// types, populated by requestor-supplied changes on resubmit.
type ExtraFields struct {
	Extra map[string]string `json:"extra,omitempty"`
}

// ApplyChanges merges changes into the extra fields.
func (e *ExtraFields) ApplyChanges(changes map[string]string) {
	if len(changes) == 0 {
		return
	}
	if e.Extra == nil {
		e.Extra = make(map[string]string, len(changes))
	}
	for k, v := range changes {
		e.Extra[k] = v
	}
}

// PurchaseMetadata describes a purchase request.
type PurchaseMetadata struct {
	ExtraFields
	Vendor     string  `json:"vendor,omitempty"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency,omitempty"`
	CostCenter string  `json:"cost_center,omitempty"`
	PONumber   string  `json:"po_number,omitempty"`
}

// MetadataCategory implements Metadata.
func (PurchaseMetadata) MetadataCategory() string { return CategoryPurchase }

// TimeOffMetadata describes a time-off request.
type TimeOffMetadata struct {
	ExtraFields
	LeaveType string    `json:"leave_type,omitempty"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      float64   `json:"days"`
}

// MetadataCategory implements Metadata.
func (TimeOffMetadata) MetadataCategory() string { return CategoryTimeOff }

// PermitMetadata describes a permit request.
type PermitMetadata struct {
	ExtraFields
	PermitType string    `json:"permit_type,omitempty"`
	Site       string    `json:"site,omitempty"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidTo    time.Time `json:"valid_to"`
}

// MetadataCategory implements Metadata.
func (PermitMetadata) MetadataCategory() string { return CategoryPermit }

// ExpenseMetadata describes an expense claim.
type ExpenseMetadata struct {
	ExtraFields
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency,omitempty"`
}

// MetadataCategory implements Metadata.
func (ExpenseMetadata) MetadataCategory() string { return CategoryExpense }

// ContractMetadata describes a contract approval request.
type ContractMetadata struct {
	ExtraFields
	Counterparty string  `json:"counterparty,omitempty"`
	Value        float64 `json:"value"`
	Currency     string  `json:"currency,omitempty"`
}

// MetadataCategory implements Metadata.
func (ContractMetadata) MetadataCategory() string { return CategoryContract }

// CustomMetadata is the free-form fallback for custom categories.
type CustomMetadata struct {
	ExtraFields
}

// MetadataCategory implements Metadata.
func (CustomMetadata) MetadataCategory() string { return CategoryCustom }

// MarshalMetadata serializes metadata for storage. Nil metadata
// serializes to nil.
func MarshalMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s metadata: %w", m.MetadataCategory(), err)
	}
	return data, nil
}

// UnmarshalMetadata deserializes stored metadata into the concrete type
// for the given category. Empty data yields nil metadata.
func UnmarshalMetadata(category string, data []byte) (Metadata, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var m Metadata
	switch category {
	case CategoryPurchase:
		m = &PurchaseMetadata{}
	case CategoryTimeOff:
		m = &TimeOffMetadata{}
	case CategoryPermit:
		m = &PermitMetadata{}
	case CategoryExpense:
		m = &ExpenseMetadata{}
	case CategoryContract:
		m = &ContractMetadata{}
	case CategoryCustom:
		m = &CustomMetadata{}
	default:
		return nil, fmt.Errorf("unknown metadata category: %s", category)
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s metadata: %w", category, err)
	}
	return m, nil
}

// NewMetadataForCategory returns an empty metadata value for the category.
func NewMetadataForCategory(category string) (Metadata, error) {
	return UnmarshalMetadata(category, []byte("{}"))
}
