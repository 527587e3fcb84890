package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundus-go/internal/diagnosis"
)

func sampleRecords() []diagnosis.PatientRecord {
	diseases := []string{"白内障", diagnosis.Unknown, "糖尿病,高血压"}
	out := make([]diagnosis.PatientRecord, len(diseases))
	for i, d := range diseases {
		out[i] = diagnosis.PatientRecord{
			ID:                  i,
			DisplayName:         diagnosis.DisplayName(i),
			CombinedDiagnosis:   diagnosis.CombinedDiagnosis{PrimaryDisease: d},
			TreatmentSuggestion: diagnosis.TreatmentSuggestion{PrimaryDisease: d, Suggestions: diagnosis.Advise(d)},
		}
	}
	return out
}

func TestRows_PreservesOrderAndDoesNotMutate(t *testing.T) {
	records := sampleRecords()
	before := sampleRecords()

	rows := Rows(records)
	require.Len(t, rows, 3)
	assert.Equal(t, "患者 1", rows[0].PatientLabel)
	assert.Equal(t, "患者 3", rows[2].PatientLabel)
	assert.Equal(t, diagnosis.Unknown, rows[1].PrimaryDisease)

	if diff := cmp.Diff(before, records); diff != "" {
		t.Errorf("records mutated (-before +after):\n%s", diff)
	}
}

func TestExport_RoundTrip(t *testing.T) {
	rows := Rows(sampleRecords())
	for _, format := range []Format{FormatCSV, FormatXLSX} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Export(&buf, format, "", rows))

			got, err := Parse(bytes.NewReader(buf.Bytes()), format, "")
			require.NoError(t, err)
			if diff := cmp.Diff(rows, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExport_EmptyHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatCSV, "", nil))
	assert.True(t, strings.HasPrefix(buf.String(), utf8BOM+"患者编号,综合诊断结果,诊疗建议"))

	got, err := Parse(&buf, FormatCSV, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExport_XLSXSheetName(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatXLSX, "", Rows(sampleRecords())))

	got, err := Parse(bytes.NewReader(buf.Bytes()), FormatXLSX, DefaultSheet)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestUnknownFormat(t *testing.T) {
	assert.ErrorIs(t, Export(&bytes.Buffer{}, Format("pdf"), "", nil), ErrUnknownFormat)
	_, err := Parse(strings.NewReader(""), Format("pdf"), "")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = ParseFormat("PDF", FormatXLSX)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	f, err := ParseFormat(" CSV ", FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("", FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
}

func TestParse_BadHeader(t *testing.T) {
	_, err := Parse(strings.NewReader("a,b,c\n1,2,3\n"), FormatCSV, "")
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 7, 1, 0, time.UTC)
	assert.Equal(t, "批量诊断报告_20240305_090701.xlsx", Filename("批量诊断报告", FormatXLSX, now))
	assert.Equal(t, "report_20240305_090701.csv", Filename("", FormatCSV, now))
	assert.Contains(t, FormatXLSX.ContentType(), "spreadsheetml")
	assert.Contains(t, FormatCSV.ContentType(), "text/csv")
}
