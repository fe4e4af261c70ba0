package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/johndauphine/propfolio/internal/property"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// field binds one text input to a draft attribute.
type field struct {
	label       string
	placeholder string
	get         func(*property.Draft) string
	set         func(*property.Draft, string) error
}

func stringField(label, placeholder string, ptr func(*property.Draft) *string) field {
	return field{
		label:       label,
		placeholder: placeholder,
		get:         func(d *property.Draft) string { return *ptr(d) },
		set: func(d *property.Draft, v string) error {
			*ptr(d) = strings.TrimSpace(v)
			return nil
		},
	}
}

func intField(label, placeholder string, ptr func(*property.Draft) *int) field {
	return field{
		label:       label,
		placeholder: placeholder,
		get: func(d *property.Draft) string {
			if *ptr(d) == 0 {
				return ""
			}
			return strconv.Itoa(*ptr(d))
		},
		set: func(d *property.Draft, v string) error {
			v = strings.TrimSpace(v)
			if v == "" {
				*ptr(d) = 0
				return nil
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s must be a whole number", strings.ToLower(label))
			}
			*ptr(d) = n
			return nil
		},
	}
}

func decimalField(label, placeholder string, ptr func(*property.Draft) *decimal.Decimal) field {
	return field{
		label:       label,
		placeholder: placeholder,
		get: func(d *property.Draft) string {
			if ptr(d).IsZero() {
				return ""
			}
			return ptr(d).String()
		},
		set: func(d *property.Draft, v string) error {
			v = strings.NewReplacer(",", "", "$", "", " ", "").Replace(v)
			if v == "" {
				*ptr(d) = decimal.Zero
				return nil
			}
			n, err := decimal.NewFromString(v)
			if err != nil {
				return fmt.Errorf("%s must be a number", strings.ToLower(label))
			}
			*ptr(d) = n
			return nil
		},
	}
}

var confirmField = field{
	label:       "Address correct? (y/n)",
	placeholder: "y",
	get: func(d *property.Draft) string {
		if d.AddressConfirmed {
			return "y"
		}
		return ""
	},
	set: func(d *property.Draft, v string) error {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "y", "yes":
			d.AddressConfirmed = true
		case "", "n", "no":
			d.AddressConfirmed = false
		default:
			return fmt.Errorf("answer y or n to confirm the address")
		}
		return nil
	},
}

var dateField = field{
	label:       "Purchase date",
	placeholder: dateLayout,
	get: func(d *property.Draft) string {
		if d.PurchaseDate.IsZero() {
			return ""
		}
		return d.PurchaseDate.Format(dateLayout)
	},
	set: func(d *property.Draft, v string) error {
		v = strings.TrimSpace(v)
		if v == "" {
			d.PurchaseDate = time.Time{}
			return nil
		}
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return fmt.Errorf("purchase date must look like %s", dateLayout)
		}
		d.PurchaseDate = t
		return nil
	},
}

// stepFields returns the inputs shown on step. The review step has none.
func stepFields(step int) []field {
	switch step {
	case property.StepAddress:
		return []field{
			stringField("Street", "123 Main St", func(d *property.Draft) *string { return &d.Address.Street }),
			stringField("Unit", "optional", func(d *property.Draft) *string { return &d.Address.Unit }),
			stringField("City", "Springfield", func(d *property.Draft) *string { return &d.Address.City }),
			stringField("State", "IL", func(d *property.Draft) *string { return &d.Address.State }),
			stringField("Postal code", "62701", func(d *property.Draft) *string { return &d.Address.PostalCode }),
			confirmField,
		}
	case property.StepDetails:
		return []field{
			stringField("Property type", strings.Join(property.PropertyTypes, "|"), func(d *property.Draft) *string { return &d.PropertyType }),
			intField("Bedrooms", "3", func(d *property.Draft) *int { return &d.Bedrooms }),
			decimalField("Bathrooms", "2.5", func(d *property.Draft) *decimal.Decimal { return &d.Bathrooms }),
			intField("Square feet", "1800", func(d *property.Draft) *int { return &d.SquareFeet }),
			intField("Year built", "1995", func(d *property.Draft) *int { return &d.YearBuilt }),
		}
	case property.StepPurchase:
		return []field{
			decimalField("Purchase price", "250000", func(d *property.Draft) *decimal.Decimal { return &d.PurchasePrice }),
			dateField,
			decimalField("Closing costs", "5000", func(d *property.Draft) *decimal.Decimal { return &d.ClosingCosts }),
		}
	case property.StepFinancing:
		return []field{
			decimalField("Down payment", "50000", func(d *property.Draft) *decimal.Decimal { return &d.DownPayment }),
			decimalField("Loan amount", "200000", func(d *property.Draft) *decimal.Decimal { return &d.LoanAmount }),
			decimalField("Interest rate %", "6.5", func(d *property.Draft) *decimal.Decimal { return &d.InterestRate }),
			intField("Loan term (years)", "30", func(d *property.Draft) *int { return &d.LoanTermYrs }),
		}
	case property.StepCashFlow:
		return []field{
			decimalField("Monthly rent", "2200", func(d *property.Draft) *decimal.Decimal { return &d.MonthlyRent }),
			decimalField("Monthly expenses", "450", func(d *property.Draft) *decimal.Decimal { return &d.MonthlyExpenses }),
		}
	default:
		return nil
	}
}
