package property

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/johndauphine/propfolio/internal/enrichment"
	"github.com/shopspring/decimal"
)

func validDraft() *Draft {
	return &Draft{
		AccountID:        "acct-1",
		PortfolioID:      "pf-1",
		Address:          Address{Street: "12 Elm St", City: "Springfield", State: "IL", PostalCode: "62701"},
		AddressConfirmed: true,
		PropertyType:     "single_family",
		Bedrooms:         3,
		Bathrooms:        decimal.RequireFromString("1.5"),
		SquareFeet:       1400,
		Currency:         "USD",
		PurchasePrice:    decimal.NewFromInt(250000),
		PurchaseDate:     time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		DownPayment:      decimal.NewFromInt(50000),
		LoanAmount:       decimal.NewFromInt(200000),
		InterestRate:     decimal.RequireFromString("6.5"),
		LoanTermYrs:      30,
		MonthlyRent:      decimal.NewFromInt(2100),
		MonthlyExpenses:  decimal.NewFromInt(450),
	}
}

func TestFormInterface(t *testing.T) {
	d := validDraft()
	if !d.IsAddressConfirmed() {
		t.Error("IsAddressConfirmed() = false")
	}
	if a, p := d.Owner(); a != "acct-1" || p != "pf-1" {
		t.Errorf("Owner() = %q, %q", a, p)
	}

	var nilDraft *Draft
	if nilDraft.IsAddressConfirmed() {
		t.Error("nil draft reports a confirmed address")
	}
}

func TestValidateStep(t *testing.T) {
	tests := []struct {
		name    string
		step    int
		mutate  func(d *Draft)
		wantErr string
	}{
		{"valid address", StepAddress, nil, ""},
		{"missing city and street", StepAddress, func(d *Draft) { d.Address.City = ""; d.Address.Street = " " }, "missing city, street"},
		{"bad type", StepDetails, func(d *Draft) { d.PropertyType = "castle" }, "property_type"},
		{"negative bedrooms", StepDetails, func(d *Draft) { d.Bedrooms = -1 }, "negative"},
		{"zero price", StepPurchase, func(d *Draft) { d.PurchasePrice = decimal.Zero }, "purchase_price"},
		{"future purchase", StepPurchase, func(d *Draft) { d.PurchaseDate = time.Now().AddDate(1, 0, 0) }, "future"},
		{"down payment too large", StepFinancing, func(d *Draft) { d.DownPayment = decimal.NewFromInt(300000) }, "exceeds"},
		{"rate too high", StepFinancing, func(d *Draft) { d.InterestRate = decimal.NewFromInt(31) }, "interest_rate"},
		{"loan without term", StepFinancing, func(d *Draft) { d.LoanTermYrs = 0 }, "loan_term_years"},
		{"negative rent", StepCashFlow, func(d *Draft) { d.MonthlyRent = decimal.NewFromInt(-1) }, "must not be negative"},
		{"review catches earlier step", StepReview, func(d *Draft) { d.PropertyType = "" }, "Property details"},
		{"review valid", StepReview, nil, ""},
		{"unknown step", 9, nil, "unknown step"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			if tt.mutate != nil {
				tt.mutate(d)
			}
			err := d.ValidateStep(tt.step)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateStep(%d) = %v, want nil", tt.step, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateStep(%d) = %v, want error containing %q", tt.step, err, tt.wantErr)
			}
		})
	}
}

func TestMonthlyPayment(t *testing.T) {
	d := validDraft()
	// 200k at 6.5% over 30 years.
	if got, want := d.MonthlyPayment(), decimal.RequireFromString("1264.14"); !got.Equal(want) {
		t.Errorf("MonthlyPayment() = %s, want %s", got, want)
	}

	d.InterestRate = decimal.Zero
	d.LoanTermYrs = 10
	if got, want := d.MonthlyPayment(), decimal.RequireFromString("1666.67"); !got.Equal(want) {
		t.Errorf("zero-rate MonthlyPayment() = %s, want %s", got, want)
	}

	d.LoanAmount = decimal.Zero
	if !d.MonthlyPayment().IsZero() {
		t.Error("MonthlyPayment() without a loan should be zero")
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"250000", "USD", "$250,000.00"},
		{"1264.139", "USD", "$1,264.14"},
		{"1000", "JPY", "¥1,000"},
		{"10", "XXX-unknown", "$10.00"},
	}

	for _, tt := range tests {
		got := FormatMoney(decimal.RequireFromString(tt.amount), tt.currency)
		if got != tt.want {
			t.Errorf("FormatMoney(%s, %s) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestReview(t *testing.T) {
	d := validDraft()
	md := &enrichment.MarketData{EstimatedValue: decimal.NewFromInt(280000), RentEstimate: decimal.NewFromInt(2200)}

	lines := d.Review(md)
	got := map[string]string{}
	for _, l := range lines {
		got[l[0]] = l[1]
	}
	if got["Address"] != "12 Elm St, Springfield, IL 62701" {
		t.Errorf("Address line = %q", got["Address"])
	}
	if got["Estimated equity"] != "$80,000.00" {
		t.Errorf("Estimated equity = %q, want $80,000.00", got["Estimated equity"])
	}
	if len(d.Review(nil)) != len(lines)-3 {
		t.Error("Review(nil) should omit market data lines")
	}
}

func TestLoadDraft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.yaml")
	content := `
account_id: acct-1
portfolio_id: pf-1
address:
  street: 12 Elm St
  city: Springfield
  state: IL
  postal_code: "62701"
address_confirmed: true
property_type: condo
bathrooms: "2"
purchase_price: "199999.99"
purchase_date: 2022-08-15T00:00:00Z
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	d, err := LoadDraft(path)
	if err != nil {
		t.Fatalf("LoadDraft: %v", err)
	}
	if d.Currency != "USD" {
		t.Errorf("Currency = %q, want USD default", d.Currency)
	}
	if !d.PurchasePrice.Equal(decimal.RequireFromString("199999.99")) {
		t.Errorf("PurchasePrice = %s", d.PurchasePrice)
	}
	if d.Address.PostalCode != "62701" || !d.AddressConfirmed {
		t.Errorf("draft = %+v", d)
	}

	if _, err := LoadDraft(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadDraft of a missing file should fail")
	}
}

func TestReviewMarkdown(t *testing.T) {
	d := validDraft()
	out := d.ReviewMarkdown("prop-123", nil)
	for _, want := range []string{"# 12 Elm St", "`prop-123`", "| Item | Value |", "| Purchase price | $"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}

	rendered, err := d.RenderReview("prop-123", nil, 60)
	if err != nil {
		t.Fatalf("RenderReview: %v", err)
	}
	if !strings.Contains(rendered, "Purchase price") {
		t.Errorf("rendered review missing rows:\n%s", rendered)
	}
}
