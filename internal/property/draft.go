// Package property holds the onboarding form data for one rental property.
package property

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/johndauphine/propfolio/internal/enrichment"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Wizard steps, 1-indexed.
const (
	StepAddress = iota + 1
	StepDetails
	StepPurchase
	StepFinancing
	StepCashFlow
	StepReview

	TotalSteps = StepReview
)

var stepTitles = map[int]string{
	StepAddress:   "Address",
	StepDetails:   "Property details",
	StepPurchase:  "Purchase",
	StepFinancing: "Financing",
	StepCashFlow:  "Income and expenses",
	StepReview:    "Review",
}

// StepTitle returns the display title of step.
func StepTitle(step int) string {
	if t, ok := stepTitles[step]; ok {
		return t
	}
	return fmt.Sprintf("Step %d", step)
}

// PropertyTypes lists the accepted property types.
var PropertyTypes = []string{"single_family", "multi_family", "condo", "townhouse", "commercial"}

// Address is a postal address.
type Address struct {
	Street     string `yaml:"street" json:"street"`
	Unit       string `yaml:"unit,omitempty" json:"unit,omitempty"`
	City       string `yaml:"city" json:"city"`
	State      string `yaml:"state" json:"state"`
	PostalCode string `yaml:"postal_code" json:"postal_code"`
	Country    string `yaml:"country,omitempty" json:"country,omitempty"`
}

// String formats the address on one line.
func (a Address) String() string {
	street := a.Street
	if a.Unit != "" {
		street += " " + a.Unit
	}
	parts := []string{street, a.City, strings.TrimSpace(a.State + " " + a.PostalCode)}
	if a.Country != "" {
		parts = append(parts, a.Country)
	}
	return strings.Join(parts, ", ")
}

// Draft is the form data collected across the wizard. Money fields are
// major-unit decimals in Currency.
type Draft struct {
	AccountID        string  `yaml:"account_id" json:"account_id"`
	PortfolioID      string  `yaml:"portfolio_id" json:"portfolio_id"`
	Address          Address `yaml:"address" json:"address"`
	AddressConfirmed bool    `yaml:"address_confirmed" json:"address_confirmed"`

	PropertyType string          `yaml:"property_type" json:"property_type"`
	Bedrooms     int             `yaml:"bedrooms" json:"bedrooms"`
	Bathrooms    decimal.Decimal `yaml:"bathrooms" json:"bathrooms"`
	SquareFeet   int             `yaml:"square_feet" json:"square_feet"`
	YearBuilt    int             `yaml:"year_built,omitempty" json:"year_built,omitempty"`

	Currency      string          `yaml:"currency" json:"currency"`
	PurchasePrice decimal.Decimal `yaml:"purchase_price" json:"purchase_price"`
	PurchaseDate  time.Time       `yaml:"purchase_date" json:"purchase_date"`
	ClosingCosts  decimal.Decimal `yaml:"closing_costs" json:"closing_costs"`

	DownPayment  decimal.Decimal `yaml:"down_payment" json:"down_payment"`
	LoanAmount   decimal.Decimal `yaml:"loan_amount" json:"loan_amount"`
	InterestRate decimal.Decimal `yaml:"interest_rate" json:"interest_rate"` // annual percent
	LoanTermYrs  int             `yaml:"loan_term_years" json:"loan_term_years"`

	MonthlyRent     decimal.Decimal `yaml:"monthly_rent" json:"monthly_rent"`
	MonthlyExpenses decimal.Decimal `yaml:"monthly_expenses" json:"monthly_expenses"`
}

// IsAddressConfirmed reports whether the user confirmed the address.
func (d *Draft) IsAddressConfirmed() bool {
	return d != nil && d.AddressConfirmed
}

// Owner returns the owning account and portfolio.
func (d *Draft) Owner() (string, string) {
	if d == nil {
		return "", ""
	}
	return d.AccountID, d.PortfolioID
}

// LoadDraft reads a draft from a YAML file.
func LoadDraft(path string) (*Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading draft: %w", err)
	}
	var d Draft
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing draft: %w", err)
	}
	if d.Currency == "" {
		d.Currency = "USD"
	}
	return &d, nil
}

// ValidateStep checks the fields collected on step. The review step checks
// everything.
func (d *Draft) ValidateStep(step int) error {
	switch step {
	case StepAddress:
		return d.validateAddress()
	case StepDetails:
		return d.validateDetails()
	case StepPurchase:
		return d.validatePurchase()
	case StepFinancing:
		return d.validateFinancing()
	case StepCashFlow:
		return d.validateCashFlow()
	case StepReview:
		for s := StepAddress; s < StepReview; s++ {
			if err := d.ValidateStep(s); err != nil {
				return fmt.Errorf("%s: %w", StepTitle(s), err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown step %d", step)
	}
}

func (d *Draft) validateAddress() error {
	var missing []string
	for name, v := range map[string]string{
		"street":      d.Address.Street,
		"city":        d.Address.City,
		"state":       d.Address.State,
		"postal_code": d.Address.PostalCode,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("address is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func (d *Draft) validateDetails() error {
	if !contains(PropertyTypes, d.PropertyType) {
		return fmt.Errorf("property_type must be one of %s", strings.Join(PropertyTypes, ", "))
	}
	if d.Bedrooms < 0 || d.SquareFeet < 0 || d.Bathrooms.IsNegative() {
		return fmt.Errorf("bedrooms, bathrooms and square_feet must not be negative")
	}
	if d.YearBuilt != 0 && (d.YearBuilt < 1700 || d.YearBuilt > time.Now().Year()+2) {
		return fmt.Errorf("year_built %d is out of range", d.YearBuilt)
	}
	return nil
}

func (d *Draft) validatePurchase() error {
	if !d.PurchasePrice.IsPositive() {
		return fmt.Errorf("purchase_price must be positive")
	}
	if d.ClosingCosts.IsNegative() {
		return fmt.Errorf("closing_costs must not be negative")
	}
	if d.PurchaseDate.IsZero() {
		return fmt.Errorf("purchase_date is required")
	}
	if d.PurchaseDate.After(time.Now()) {
		return fmt.Errorf("purchase_date must not be in the future")
	}
	return nil
}

var maxInterestRate = decimal.NewFromInt(30)

func (d *Draft) validateFinancing() error {
	if d.DownPayment.IsNegative() || d.LoanAmount.IsNegative() {
		return fmt.Errorf("down_payment and loan_amount must not be negative")
	}
	if d.DownPayment.GreaterThan(d.PurchasePrice) {
		return fmt.Errorf("down_payment exceeds purchase_price")
	}
	if d.InterestRate.IsNegative() || d.InterestRate.GreaterThan(maxInterestRate) {
		return fmt.Errorf("interest_rate must be between 0 and 30 percent")
	}
	if d.LoanAmount.IsPositive() && d.LoanTermYrs <= 0 {
		return fmt.Errorf("loan_term_years is required when financing")
	}
	return nil
}

func (d *Draft) validateCashFlow() error {
	if d.MonthlyRent.IsNegative() || d.MonthlyExpenses.IsNegative() {
		return fmt.Errorf("monthly_rent and monthly_expenses must not be negative")
	}
	return nil
}

// MonthlyCashFlow is rent minus expenses minus the loan payment.
func (d *Draft) MonthlyCashFlow() decimal.Decimal {
	return d.MonthlyRent.Sub(d.MonthlyExpenses).Sub(d.MonthlyPayment())
}

// MonthlyPayment is the fixed-rate amortized loan payment, rounded to cents.
func (d *Draft) MonthlyPayment() decimal.Decimal {
	if !d.LoanAmount.IsPositive() || d.LoanTermYrs <= 0 {
		return decimal.Zero
	}
	n := int64(d.LoanTermYrs * 12)
	if d.InterestRate.IsZero() {
		return d.LoanAmount.Div(decimal.NewFromInt(n)).Round(2)
	}
	r := d.InterestRate.Div(decimal.NewFromInt(1200))
	growth := r.Add(decimal.NewFromInt(1)).Pow(decimal.NewFromInt(n))
	payment := d.LoanAmount.Mul(r).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1)))
	return payment.Round(2)
}

// Review returns label/value lines for the review step. md may be nil.
func (d *Draft) Review(md *enrichment.MarketData) [][2]string {
	lines := [][2]string{
		{"Address", d.Address.String()},
		{"Type", strings.ReplaceAll(d.PropertyType, "_", " ")},
		{"Purchase price", FormatMoney(d.PurchasePrice, d.Currency)},
		{"Down payment", FormatMoney(d.DownPayment, d.Currency)},
		{"Loan", FormatMoney(d.LoanAmount, d.Currency)},
		{"Monthly payment", FormatMoney(d.MonthlyPayment(), d.Currency)},
		{"Monthly rent", FormatMoney(d.MonthlyRent, d.Currency)},
		{"Monthly cash flow", FormatMoney(d.MonthlyCashFlow(), d.Currency)},
	}
	if md != nil {
		lines = append(lines,
			[2]string{"Estimated value", FormatMoney(md.EstimatedValue, d.Currency)},
			[2]string{"Estimated rent", FormatMoney(md.RentEstimate, d.Currency)},
		)
		if !md.EstimatedValue.IsZero() {
			equity := md.EstimatedValue.Sub(d.LoanAmount)
			lines = append(lines, [2]string{"Estimated equity", FormatMoney(equity, d.Currency)})
		}
	}
	return lines
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
