package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cardimg-scraper/internal/batch"
)

func newTestValidator() *Validator {
	return New([]string{"scryfall.com", "www.tcgplayer.com"})
}

func TestValidateAcceptsCleanBatch(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		"Card Page URI,Card Name",
		"https://scryfall.com/card/abc,Black Lotus",
		"https://www.tcgplayer.com/product/123,Mox Ruby",
	}, "\n")

	rows, report := newTestValidator().Validate(body)
	require.True(t, report.Empty())
	require.Len(t, rows, 2)
	require.Equal(t, "https://scryfall.com/card/abc", rows[0].PageURI())
	require.Equal(t, "Black Lotus", rows[0]["Card Name"])
}

func TestValidateEmptyBody(t *testing.T) {
	t.Parallel()

	rows, report := newTestValidator().Validate("   \n ")
	require.Nil(t, rows)
	require.Equal(t, "Request body missing or inaccessible", report.BodyError)
}

func TestValidateMissingURIColumn(t *testing.T) {
	t.Parallel()

	body := "Card Name,Set\nBlack Lotus,LEA\n"
	rows, report := newTestValidator().Validate(body)
	require.Nil(t, rows)
	require.Equal(t, "CSV headers missing or malformed", report.BodyError)
}

func TestValidateRowErrorPrecedence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		uri  string
		want string
	}{
		{"missing", "", "uri missing"},
		{"not a url", "://nope", "uri not valid"},
		{"relative", "card/abc", "uri not valid"},
		{"http scheme", "http://scryfall.com/card/abc", "uri must begin with https"},
		{"unapproved", "https://evil.example.com/card/abc", "uri not in approved domains"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Two columns so the empty-URI row is not a blank line, which
			// the CSV reader would skip entirely.
			body := "Card Page URI,Card Name\n" + tc.uri + ",Black Lotus\n"
			rows, report := newTestValidator().Validate(body)
			require.Nil(t, rows)
			require.Equal(t, []string{tc.want}, report.RowErrors[2])
		})
	}
}

func TestValidateShortRowIsMalformed(t *testing.T) {
	t.Parallel()

	// The URI column is second; a one-cell row cannot carry it.
	body := "Card Name,Card Page URI\nBlack Lotus\n"
	rows, report := newTestValidator().Validate(body)
	require.Nil(t, rows)
	require.Equal(t, []string{"malformed row"}, report.RowErrors[2])
}

func TestValidateAllOrNothing(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		"Card Page URI",
		"https://scryfall.com/card/good",
		"http://scryfall.com/card/bad",
		"https://scryfall.com/card/also-good",
	}, "\n")

	rows, report := newTestValidator().Validate(body)
	require.Nil(t, rows)
	require.Len(t, report.RowErrors, 1)
	require.Equal(t, []string{"uri must begin with https"}, report.RowErrors[3])
}

func TestValidateWWWAndCaseInsensitiveDomains(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		"Card Page URI",
		"https://WWW.Scryfall.COM/card/abc",
		"https://tcgplayer.com/product/123",
	}, "\n")

	rows, report := newTestValidator().Validate(body)
	require.True(t, report.Empty())
	require.Len(t, rows, 2)
}

func TestValidateReportLineNumbers(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		"Card Page URI,Card Name",
		"https://scryfall.com/card/ok,Ok",
		",Nameless",
		"https://scryfall.com/card/ok2,Ok Two",
		"ftp://scryfall.com/card/bad,Bad",
	}, "\n")

	_, report := newTestValidator().Validate(body)
	require.Equal(t, []string{"uri missing"}, report.RowErrors[3])
	require.Equal(t, []string{"uri must begin with https"}, report.RowErrors[5])
}

func TestRowMapKeepsExtraColumns(t *testing.T) {
	t.Parallel()

	body := "Card Page URI,Condition\nhttps://scryfall.com/card/abc,NM\n"
	rows, report := newTestValidator().Validate(body)
	require.True(t, report.Empty())
	require.Equal(t, batch.RowMap{
		"Card Page URI": "https://scryfall.com/card/abc",
		"Condition":     "NM",
	}, rows[0])
}
