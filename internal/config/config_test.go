package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Key:                   "gb__metro__checking__01",
		BankName:              "Metro Bank",
		AccountType:           "Checking",
		AccountTerms:          []string{"Metro Bank", "Sort Code"},
		AccountNumberPatterns: []string{`\d{8}`},
		ApplyYPatchLineHeight: 5,
		AccountNumber:         FieldRule{Terms: []string{"Account Number"}, Align: AlignY1, Tolerance: 1},
		OpeningBalance:        FieldRule{Terms: []string{"Opening Balance"}, Formats: []string{"format1"}, Align: AlignY1, Tolerance: 1},
		ClosingBalance:        FieldRule{Terms: []string{"Closing Balance"}, Formats: []string{"format1"}, Align: AlignY1, Tolerance: 1},
		StartDate:             FieldRule{Terms: []string{"Statement Period"}, Formats: []string{"format2"}, Align: AlignNone, Tolerance: 0},

		TransactionTerms:        []string{"Date", "Description", "Amount", "Balance"},
		TransactionFormats:      []TransactionFormat{{"date", "description", "amount", "balance"}},
		TransactionAlignmentTol: 2,
		TransactionNewLineTol:   2,

		DateColumn:        ColumnRule{HeaderTerms: []string{"Date"}, Align: AlignX1},
		DescriptionColumn: ColumnRule{HeaderTerms: []string{"Description"}, Align: AlignX1},
		AmountColumn:      ColumnRule{HeaderTerms: []string{"Amount"}, Align: AlignX2},
		AmountInvert:      ColumnRule{HeaderTerms: []string{"Paid Out"}, Align: AlignX2},
		BalanceColumn:     ColumnRule{HeaderTerms: []string{"Balance"}, Align: AlignX2},

		TransactionDateFormats:    []string{"format6"},
		TransactionAmountFormats:  []string{"format1"},
		TransactionBalanceFormats: []string{"format1"},
	}
}

func TestValidConfigPasses(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestInvalidKeyRejected(t *testing.T) {
	c := validConfig()
	c.Key = "not-a-valid-key"
	assert.Error(t, c.Validate())
}

func TestInvalidAccountTypeRejected(t *testing.T) {
	c := validConfig()
	c.AccountType = "Something Else"
	assert.Error(t, c.Validate())
}

func TestEmptyAccountTermsRejected(t *testing.T) {
	c := validConfig()
	c.AccountTerms = nil
	assert.Error(t, c.Validate())
}

func TestUnregisteredFormatLabelRejected(t *testing.T) {
	c := validConfig()
	c.TransactionAmountFormats = []string{"format99"}
	assert.Error(t, c.Validate())
}

func TestInvalidAlignmentRejected(t *testing.T) {
	c := validConfig()
	c.DateColumn.Align = "diagonal"
	assert.Error(t, c.Validate())
}

func TestNegativeToleranceRejected(t *testing.T) {
	c := validConfig()
	c.TransactionAlignmentTol = -1
	assert.Error(t, c.Validate())
}

func TestUnknownTransactionSlotRejected(t *testing.T) {
	c := validConfig()
	c.TransactionFormats = []TransactionFormat{{"date", "emoji"}}
	assert.Error(t, c.Validate())
}

func TestBalanceColumnWithoutFormatsRejected(t *testing.T) {
	c := validConfig()
	c.TransactionBalanceFormats = nil
	assert.Error(t, c.Validate())
}

func TestInvalidRegexRejected(t *testing.T) {
	c := validConfig()
	c.AccountNumberPatterns = []string{"["}
	assert.Error(t, c.Validate())
}
