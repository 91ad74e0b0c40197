package currency

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	AmountPrecision = 2
	RatePrecision   = 6

	// DefaultBase is used when a rate lookup names no base currency.
	DefaultBase = "USD"
)

var (
	ErrInvalidCurrencyCode = errors.New("invalid currency code")
	ErrNegativeAmount      = errors.New("amount must not be negative")
	ErrInvalidAmount       = errors.New("amount must be a finite number")
	ErrRateNotAvailable    = errors.New("rate not available")
	ErrProviderFailure     = errors.New("provider failed to return rates")
	ErrNoProvider          = errors.New("no rate provider configured")

	codePattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// APIError is a failure reported by a vendor in its own response envelope.
type APIError struct {
	Provider string
	Code     string
	Message  string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}

	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidCode checks the syntax only, codes are not matched against ISO-4217.
func IsValidCode(code string) bool {
	return codePattern.MatchString(NormalizeCode(code))
}

// ValidateCode returns the normalized code or ErrInvalidCurrencyCode.
func ValidateCode(code string) (string, error) {
	normalized := NormalizeCode(code)

	if !codePattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrencyCode, code)
	}

	return normalized, nil
}

// IsFinite reports whether value is neither NaN nor an infinity.
func IsFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}

// ValidateAmount rejects NaN, infinities and negative amounts.
func ValidateAmount(amount float64) error {
	if !IsFinite(amount) {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}

	if amount < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeAmount, amount)
	}

	return nil
}

// ValidateBase is ValidateCode with a blank code meaning DefaultBase.
func ValidateBase(base string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return DefaultBase, nil
	}

	return ValidateCode(base)
}

func RoundAmount(value float64) float64 {
	return round(value, AmountPrecision)
}

func RoundRate(value float64) float64 {
	return round(value, RatePrecision)
}

// round passes non-finite values through, decimal cannot represent them.
func round(value float64, places int32) float64 {
	if !IsFinite(value) {
		return value
	}

	rounded, _ := decimal.NewFromFloat(value).Round(places).Float64()

	return rounded
}

// Convert multiplies amount by rate and rounds to currency display precision.
// A non-finite operand yields NaN.
func Convert(amount, rate float64) float64 {
	if !IsFinite(amount) || !IsFinite(rate) {
		return math.NaN()
	}

	converted, _ := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(rate)).
		Round(AmountPrecision).
		Float64()

	return converted
}
