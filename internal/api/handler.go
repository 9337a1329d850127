// Package api exposes the driver over HTTP: POST /api/convert accepts
// an uploaded PDF (and an optional forced config key) and returns the
// extracted statement as JSON plus a rendered CSV string; GET
// /api/health is a liveness probe. Built on gofiber/fiber/v2, mirroring
// the teacher's original net/http handler's route shape and JSON
// response contract, generalized from a fixed bank enum to the
// config-driven driver.
package api

import (
	"bytes"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/insightdelivered/transtractor/internal/driver"
	"github.com/insightdelivered/transtractor/internal/extractor"
	"github.com/insightdelivered/transtractor/internal/layout"
	"github.com/insightdelivered/transtractor/internal/registry"
	"github.com/insightdelivered/transtractor/internal/statement"
	"github.com/insightdelivered/transtractor/internal/writer"
)

const version = "2.0.0"

// Registry is the set of configs HandleConvert runs candidates
// against. cmd/transtractor (or a test) must set it before routes are
// exercised; a nil Registry fails every /api/convert call with a
// clear 500 rather than panicking inside fiber's handler chain.
var Registry *registry.Registry

// SetRegistry installs reg as the registry HandleConvert uses.
func SetRegistry(reg *registry.Registry) {
	Registry = reg
}

// TransactionJSON is one transaction in the /api/convert response,
// rendered with the same wire formatting writer.CSVWriter uses.
type TransactionJSON struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Balance     string `json:"balance,omitempty"`
}

// ConvertResponse is the JSON response body from /api/convert.
type ConvertResponse struct {
	Success          bool              `json:"success"`
	Error            string            `json:"error,omitempty"`
	ConfigKey        string            `json:"configKey,omitempty"`
	AccountNumber    string            `json:"accountNumber,omitempty"`
	StartDate        string            `json:"startDate,omitempty"`
	OpeningBalance   string            `json:"openingBalance,omitempty"`
	ClosingBalance   string            `json:"closingBalance,omitempty"`
	Transactions     []TransactionJSON `json:"transactions"`
	CSV              string            `json:"csv,omitempty"`
	Count            int               `json:"count"`
	Version          string            `json:"version,omitempty"`
	AttemptedConfigs []string          `json:"attemptedConfigs,omitempty"`
}

// HandleHealth answers GET /api/health.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": version,
	})
}

// HandleConvert answers POST /api/convert: a multipart "file" field
// holding the PDF, and an optional "key" field forcing a specific
// config instead of auto-typing via the registry.
func HandleConvert(c *fiber.Ctx) error {
	if Registry == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse("server has no configs loaded"))
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse("no file uploaded; use form field 'file'"))
	}

	tmp, err := os.CreateTemp("", "statement-*.pdf")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse("failed to create temp file"))
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := c.SaveFile(fileHeader, tmp.Name()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse(fmt.Sprintf("failed to save uploaded file: %v", err)))
	}

	pages, err := extractor.ExtractFragments(tmp.Name())
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errorResponse(fmt.Sprintf("PDF extraction failed: %v", err)))
	}

	opts := layout.DefaultOptions

	var data *statement.StatementData
	var attempts []driver.Attempt
	if forcedKey := c.FormValue("key"); forcedKey != "" {
		cfg := Registry.Get(forcedKey)
		if cfg == nil {
			return c.Status(fiber.StatusBadRequest).JSON(errorResponse(fmt.Sprintf("unknown config key %q", forcedKey)))
		}
		single := registry.New()
		if regErr := single.Register(cfg, ""); regErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(errorResponse(regErr.Error()))
		}
		base := layout.Normalize(pages, opts)
		data, attempts, err = driver.Run(base, single)
	} else {
		data, attempts, err = driver.RunFromPages(pages, opts, Registry)
	}

	if err != nil {
		resp := errorResponse(err.Error())
		resp.AttemptedConfigs = attemptedKeys(attempts)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	}

	var csvBuf bytes.Buffer
	includeHeader := c.FormValue("header") != "false"
	csvWriter := &writer.CSVWriter{IncludeHeader: includeHeader}
	if err := csvWriter.Write(&csvBuf, data); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse(fmt.Sprintf("CSV generation failed: %v", err)))
	}

	resp := ConvertResponse{
		Success:          true,
		ConfigKey:        data.ConfigKey,
		Transactions:     transactionsJSON(data),
		CSV:              csvBuf.String(),
		Count:            len(data.Transactions),
		Version:          version,
		AttemptedConfigs: attemptedKeys(attempts),
	}
	if data.HasAccountNumber {
		resp.AccountNumber = data.AccountNumber
	}
	if data.HasStartDate {
		resp.StartDate = data.StartDate.String()
	}
	if data.HasOpeningBalance {
		resp.OpeningBalance = data.OpeningBalance.String()
	}
	if data.HasClosingBalance {
		resp.ClosingBalance = data.ClosingBalance.String()
	}

	return c.JSON(resp)
}

func transactionsJSON(data *statement.StatementData) []TransactionJSON {
	out := make([]TransactionJSON, 0, len(data.Transactions))
	for _, tx := range data.Transactions {
		t := TransactionJSON{
			Date:        tx.Date.String(),
			Description: tx.Description,
			Amount:      tx.Amount.String(),
		}
		if tx.HasBalance {
			t.Balance = tx.Balance.String()
		}
		out = append(out, t)
	}
	return out
}

func attemptedKeys(attempts []driver.Attempt) []string {
	if len(attempts) == 0 {
		return nil
	}
	keys := make([]string, len(attempts))
	for i, a := range attempts {
		keys[i] = a.ConfigKey
	}
	return keys
}

func errorResponse(msg string) ConvertResponse {
	return ConvertResponse{Success: false, Error: msg, Transactions: []TransactionJSON{}}
}
