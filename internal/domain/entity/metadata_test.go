package entity

import (
	"testing"
)

func TestMetadataCategories(t *testing.T) {
	tests := []struct {
		meta Metadata
		want string
	}{
		{&PurchaseMetadata{}, CategoryPurchase},
		{&TimeOffMetadata{}, CategoryTimeOff},
		{&PermitMetadata{}, CategoryPermit},
		{&ExpenseMetadata{}, CategoryExpense},
		{&ContractMetadata{}, CategoryContract},
		{&CustomMetadata{}, CategoryCustom},
	}

	for _, tt := range tests {
		if got := tt.meta.MetadataCategory(); got != tt.want {
			t.Errorf("MetadataCategory() = %q, want %q", got, tt.want)
		}
	}
}

func TestApplyChangesMergesExtraFields(t *testing.T) {
	m := &PurchaseMetadata{Vendor: "Acme", Amount: 4200}

	m.ApplyChanges(map[string]string{"justification": "quarterly restock"})
	m.ApplyChanges(map[string]string{"justification": "urgent restock", "quote_id": "Q-19"})

	if m.Vendor != "Acme" || m.Amount != 4200 {
		t.Error("ApplyChanges modified typed fields")
	}
	if got := m.Extra["justification"]; got != "urgent restock" {
		t.Errorf("Extra[justification] = %q, want %q", got, "urgent restock")
	}
	if got := m.Extra["quote_id"]; got != "Q-19" {
		t.Errorf("Extra[quote_id] = %q, want %q", got, "Q-19")
	}
}

func TestApplyChangesEmptyIsNoop(t *testing.T) {
	m := &CustomMetadata{}
	m.ApplyChanges(nil)
	m.ApplyChanges(map[string]string{})

	if m.Extra != nil {
		t.Errorf("Extra = %v after empty changes, want nil", m.Extra)
	}
}

func TestMarshalMetadataRoundTrip(t *testing.T) {
	m := &ExpenseMetadata{Description: "taxi", Amount: 38.5, Currency: "EUR"}
	m.ApplyChanges(map[string]string{"receipt": "r-77"})

	data, err := MarshalMetadata(m)
	if err != nil {
		t.Fatalf("MarshalMetadata() error = %v", err)
	}

	restored, err := UnmarshalMetadata(CategoryExpense, data)
	if err != nil {
		t.Fatalf("UnmarshalMetadata() error = %v", err)
	}

	expense, ok := restored.(*ExpenseMetadata)
	if !ok {
		t.Fatalf("UnmarshalMetadata() returned %T, want *ExpenseMetadata", restored)
	}
	if expense.Description != "taxi" || expense.Amount != 38.5 || expense.Currency != "EUR" {
		t.Errorf("restored metadata = %+v", expense)
	}
	if expense.Extra["receipt"] != "r-77" {
		t.Errorf("Extra[receipt] = %q, want %q", expense.Extra["receipt"], "r-77")
	}
}

func TestMarshalMetadataNil(t *testing.T) {
	data, err := MarshalMetadata(nil)
	if err != nil {
		t.Fatalf("MarshalMetadata(nil) error = %v", err)
	}
	if data != nil {
		t.Errorf("MarshalMetadata(nil) = %q, want nil", data)
	}
}

func TestUnmarshalMetadataEmpty(t *testing.T) {
	m, err := UnmarshalMetadata(CategoryPurchase, nil)
	if err != nil {
		t.Fatalf("UnmarshalMetadata(nil) error = %v", err)
	}
	if m != nil {
		t.Errorf("UnmarshalMetadata(nil) = %v, want nil", m)
	}
}

func TestUnmarshalMetadataUnknownCategory(t *testing.T) {
	_, err := UnmarshalMetadata("bonus", []byte(`{}`))
	if err == nil {
		t.Fatal("UnmarshalMetadata(unknown) error = nil, want error")
	}
}

func TestNewMetadataForCategory(t *testing.T) {
	for _, category := range []string{
		CategoryPurchase, CategoryTimeOff, CategoryPermit,
		CategoryExpense, CategoryContract, CategoryCustom,
	} {
		m, err := NewMetadataForCategory(category)
		if err != nil {
			t.Errorf("NewMetadataForCategory(%s) error = %v", category, err)
			continue
		}
		if m.MetadataCategory() != category {
			t.Errorf("NewMetadataForCategory(%s).MetadataCategory() = %s", category, m.MetadataCategory())
		}
	}
}
