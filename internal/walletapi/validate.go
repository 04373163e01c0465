package walletapi

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	cvuPattern = regexp.MustCompile(`^\d{22}$`)
	validate   = validator.New()
)

// ValidateCVU accepts exactly 22 ASCII digits.
func ValidateCVU(cvu string) error {
	if !cvuPattern.MatchString(cvu) {
		return &ValidationError{Field: "cvu", Message: "El CVU debe tener exactamente 22 dígitos"}
	}
	return nil
}

// ParseAmount parses user input into a positive amount. Non-numeric input
// and values ≤ 0 are rejected with the same user-facing message.
func ParseAmount(input string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(input)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Message: "Por favor, ingresa una cantidad válida mayor a 0"}
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ValidateAmount rejects amounts that are not strictly positive.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "Por favor, ingresa una cantidad válida mayor a 0"}
	}
	return nil
}

// ValidateEmail checks that the address is present and well-formed.
func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return &ValidationError{Field: "email", Message: "Por favor, ingresa un email válido"}
	}
	return nil
}

func requireNonEmpty(field, value, message string) error {
	if err := validate.Var(value, "required"); err != nil {
		return &ValidationError{Field: field, Message: message}
	}
	return nil
}
