package cli

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

func sampleCaseSnapshot() docs.CaseData {
	return docs.CaseData{
		CaseID:          "CASE-7",
		TenantName:      "Maria Lopez",
		LandlordName:    "Oak Grove LLC",
		HearingDate:     "2025-03-12",
		AnswerDeadline:  "2025-03-05",
		PropertyAddress: "412 Elm St Apt 2, Minneapolis, MN 55404",
		CaseNumber:      "27-CV-HC-25-1234",
		CourtName:       "Hennepin County Housing Court",
		MonthlyRent:     1250,
		RentClaimed:     3750,
		LateFees:        150,
		TotalClaimed:    3900,
		AllParties: []docs.CaseParty{
			{Name: "Maria Lopez", Role: "tenant"},
			{Name: "Oak Grove LLC", Role: "landlord"},
		},
		AllDates: []docs.CaseDate{
			{Date: "2025-03-12", Label: "hearing_date"},
		},
		Urgency:       docs.UrgencyCritical,
		DocumentCount: 3,
	}
}

func TestCaseCommand(t *testing.T) {
	var gotPath string
	ts := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		writeEnvelope(t, w, http.StatusOK, sampleCaseSnapshot())
	})

	out, err := runCommand(t, "case", "CASE-7", "--server", ts.URL, "--no-color")
	require.NoError(t, err)

	assert.Equal(t, "GET /api/v1/cases/CASE-7", gotPath)

	assert.Contains(t, out, "Maria Lopez")
	assert.Contains(t, out, "Oak Grove LLC")
	assert.Contains(t, out, "27-CV-HC-25-1234")
	assert.Contains(t, out, "2025-03-05")
	assert.Contains(t, out, "critical")
	assert.Contains(t, out, "$3900.00")
	assert.Contains(t, out, "Documents:  3")
}

func TestCaseCommand_Rebuild(t *testing.T) {
	var gotPath string
	ts := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		writeEnvelope(t, w, http.StatusOK, sampleCaseSnapshot())
	})

	_, err := runCommand(t, "case", "CASE-7", "--rebuild", "--server", ts.URL)
	require.NoError(t, err)

	assert.Equal(t, "POST /api/v1/cases/CASE-7/rebuild", gotPath)
}

func TestCaseCommand_JSON(t *testing.T) {
	ts := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusOK, sampleCaseSnapshot())
	})

	out, err := runCommand(t, "case", "CASE-7", "--server", ts.URL, "--json")
	require.NoError(t, err)

	var data docs.CaseData
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, 3, data.DocumentCount)
	assert.Equal(t, 3900.0, data.TotalClaimed)
}

func TestCaseCommand_NotFound(t *testing.T) {
	ts := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeErrorEnvelope(t, w, http.StatusNotFound,
			errors.ErrCodeCaseNotFound.String(), "case not found")
	})

	_, err := runCommand(t, "case", "CASE-404", "--server", ts.URL)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCaseNotFound))
}
