// Package validate turns a raw submitted CSV body into accepted rows
// plus structured per-row errors. Validation is all-or-nothing: a batch
// with any invalid row is rejected wholesale.
package validate

import (
	"encoding/csv"
	"io"
	"net/url"
	"strings"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
)

// Row error messages, checked in precedence order; the first violation
// per row wins.
const (
	msgURIMissing     = "uri missing"
	msgURINotValid    = "uri not valid"
	msgURINotHTTPS    = "uri must begin with https"
	msgURINotApproved = "uri not in approved domains"
	msgMalformedRow   = "malformed row"
)

// Body-level error messages.
const (
	msgBodyMissing      = "Request body missing or inaccessible"
	msgHeadersMalformed = "CSV headers missing or malformed"
)

// Report aggregates validation failures. Row errors are keyed by the
// 1-based display line number (the header line counts as line 1).
type Report struct {
	BodyError string           `json:"bodyErrors,omitempty"`
	RowErrors map[int][]string `json:"singleRowErrors,omitempty"`
}

// Empty reports whether the validation passed cleanly.
func (r Report) Empty() bool {
	return r.BodyError == "" && len(r.RowErrors) == 0
}

// Validator checks submitted batches against the approved-domain list.
type Validator struct {
	approved map[string]struct{}
}

// New builds a Validator. The domains are the keys of the configured
// domain-to-selector table; values are only relevant to the worker.
func New(approvedDomains []string) *Validator {
	approved := make(map[string]struct{}, len(approvedDomains))
	for _, d := range approvedDomains {
		approved[batch.NormalizeHost(d)] = struct{}{}
	}
	return &Validator{approved: approved}
}

// Validate parses the body as CSV with a header row and checks every
// data row. Accepted rows are returned only when zero errors exist;
// otherwise the row slice is nil and the report is non-empty.
func (v *Validator) Validate(body string) ([]batch.RowMap, Report) {
	if strings.TrimSpace(body) == "" {
		return nil, Report{BodyError: msgBodyMissing}
	}

	reader := csv.NewReader(strings.NewReader(body))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, Report{BodyError: msgBodyMissing}
	}
	uriIndex := -1
	for i, cell := range header {
		if cell == batch.CardPageURIColumn {
			uriIndex = i
			break
		}
	}
	if uriIndex < 0 {
		return nil, Report{BodyError: msgHeadersMalformed}
	}

	var rows []batch.RowMap
	rowErrors := make(map[int][]string)
	for i := 0; ; i++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Report{BodyError: msgHeadersMalformed}
		}
		// i+2 because the file is 1-indexed and line 1 is the header.
		line := i + 2
		if msg := v.checkRow(record, uriIndex); msg != "" {
			rowErrors[line] = append(rowErrors[line], msg)
			continue
		}
		rows = append(rows, zipRow(header, record))
	}

	if len(rowErrors) > 0 {
		return nil, Report{RowErrors: rowErrors}
	}
	return rows, Report{}
}

func (v *Validator) checkRow(record []string, uriIndex int) string {
	if uriIndex >= len(record) {
		return msgMalformedRow
	}
	uri := record[uriIndex]
	if uri == "" {
		return msgURIMissing
	}
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return msgURINotValid
	}
	if strings.ToLower(u.Scheme) != "https" {
		return msgURINotHTTPS
	}
	if _, ok := v.approved[batch.NormalizeHost(u.Hostname())]; !ok {
		return msgURINotApproved
	}
	return ""
}

func zipRow(header, record []string) batch.RowMap {
	row := make(batch.RowMap, len(header))
	for i, cell := range header {
		if i < len(record) {
			row[cell] = record[i]
		}
	}
	return row
}
