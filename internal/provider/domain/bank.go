package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	bic "github.com/jbub/banking/swift"
	"github.com/jbub/banking/iban"
)

var ErrInvalidBankDetails = errors.New("invalid_bank_details")

type BankDetails struct {
	AccountHolder string `json:"account_holder"`
	IBAN          string `json:"iban"`
	BIC           string `json:"bic"`
}

func (p Provider) BankDetails() BankDetails {
	return BankDetails{
		AccountHolder: strings.TrimSpace(p.BankAccountHolder),
		IBAN:          NormalizeIBAN(p.IBAN),
		BIC:           strings.ToUpper(strings.TrimSpace(p.BIC)),
	}
}

// Validate checks the holder, the IBAN against its country format and
// checksum, and the BIC when one is given.
func (b BankDetails) Validate() error {
	if b.AccountHolder == "" {
		return errors.Join(ErrInvalidBankDetails, errors.New("missing account holder"))
	}
	if err := iban.Validate(b.IBAN); err != nil {
		return errors.Join(ErrInvalidBankDetails, fmt.Errorf("iban: %w", err))
	}
	if b.BIC != "" {
		if err := bic.Validate(b.BIC); err != nil {
			return errors.Join(ErrInvalidBankDetails, fmt.Errorf("bic: %w", err))
		}
	}
	return nil
}

// MaskedIBAN keeps the country code and the last four characters.
func (b BankDetails) MaskedIBAN() string {
	if len(b.IBAN) < 8 {
		return strings.Repeat("*", len(b.IBAN))
	}
	return b.IBAN[:2] + strings.Repeat("*", len(b.IBAN)-6) + b.IBAN[len(b.IBAN)-4:]
}

func NormalizeIBAN(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// ValidIBAN reports whether iban has the length and BBAN layout of its
// country and a correct mod-97 check.
func ValidIBAN(value string) bool {
	return iban.Validate(NormalizeIBAN(value)) == nil
}
