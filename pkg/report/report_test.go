package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/votergrid/votergrid/pkg/extract"
)

func sampleRecords() []extract.Record {
	return []extract.Record{
		{
			Page: 1, Column: 1, Row: 1,
			VoterID:      "ABC1234567",
			Name:         "राम कुमार",
			NameEnglish:  "Raama Kumaara",
			RelativeType: "F",
			Gender:       "पु",
			Age:          "44",
			BoothCenter:  "Zilla Parishad School",
		},
		{
			Page: 1, Column: 1, Row: 2,
			// OCR-confused identifier; the writer must repair it.
			VoterID: "1BCO23456Z",
			Gender:  "स्री",
		},
	}
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleRecords()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Headers, rows[0][:len(Headers)])

	assert.Equal(t, "ABC1234567", rows[1][0])
	assert.Equal(t, "राम कुमार", rows[1][1])
	assert.Equal(t, "Raama Kumaara", rows[1][2])
	assert.Equal(t, "F", rows[1][5])
	assert.Equal(t, "44", rows[1][8])
	assert.Equal(t, "Zilla Parishad School", rows[1][11])

	// The confused identifier comes out repaired.
	assert.Equal(t, "IBC0234562", rows[2][0])
}

func TestBuildHandsOverOpenFile(t *testing.T) {
	// Build owns cleanup on failure; on success the caller gets a file
	// that is still open and closes without error.
	f, err := Build(sampleRecords())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	assert.NoError(t, f.Close())
}

func TestBuildEmptyRecordsStillHasHeader(t *testing.T) {
	f, err := Build(nil)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Headers, rows[0][:len(Headers)])
}
