package dataset

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fullHeader = []interface{}{"ID", "Left-Fundus", "Right-Fundus", "正常", "糖尿病", "青光眼", "白内障", "AMD", "高血压", "近视", "其他疾病/异常 "}

func buildXLSX(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, r := range rows {
		r := r
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, axis, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestNormalizeFlag(t *testing.T) {
	tests := map[string]int{
		"1":     1,
		" 1 ":   1,
		"1.0":   1,
		"1.00":  1,
		"TRUE":  1,
		"true":  1,
		"0":     0,
		"0.0":   0,
		"":      0,
		"  ":    0,
		"2":     0,
		"-1":    0,
		"NaN":   0,
		"yes":   0,
		"false": 0,
	}
	for raw, want := range tests {
		assert.Equal(t, want, NormalizeFlag(raw), "raw=%q", raw)
	}
}

func TestRowsFromRecords_TrimsHeadersAndNormalizes(t *testing.T) {
	records := [][]string{
		{"ID", "Left-Fundus", "Right-Fundus", "正常", "糖尿病", "青光眼", "白内障", "AMD", "高血压", "近视", "其他疾病/异常 "},
		{"0", "0_left.jpg", "0_right.jpg", "0", "1", "0", "0", "0", "1.0", "0", " 1"},
		{"", "", "", "", ""},
		{"1", " 1_left.jpg ", "1_right.jpg"},
	}

	rows, err := RowsFromRecords(records)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "0_left.jpg", rows[0].LeftFilename)
	assert.Equal(t, []string{ConditionDiabetes, ConditionHypertension, ConditionOther}, rows[0].Active())

	assert.Equal(t, "1_left.jpg", rows[1].LeftFilename)
	assert.Empty(t, rows[1].Active())
	for _, c := range Conditions {
		v, ok := rows[1].Flags[c]
		assert.True(t, ok, c)
		assert.Equal(t, 0, v, c)
	}
}

func TestRowsFromRecords_LegacyColumns(t *testing.T) {
	rows, err := RowsFromRecords([][]string{
		{"left", "Right", "白内障"},
		{"3_left.jpg", "3_right.jpg", "1"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "3_right.jpg", rows[0].RightFilename)
	assert.Equal(t, 1, rows[0].Flag(ConditionCataract))
}

func TestRowsFromRecords_MissingFilenameColumns(t *testing.T) {
	_, err := RowsFromRecords([][]string{{"正常", "糖尿病"}, {"1", "0"}})
	assert.ErrorIs(t, err, ErrNoFilenameColumns)

	rows, err := RowsFromRecords(nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseXLSX_NumericAndTextCells(t *testing.T) {
	data := buildXLSX(t,
		fullHeader,
		[]interface{}{0, "0_left.jpg", "0_right.jpg", 0, 0, 0, 1, 0, 0, 0, 0},
		[]interface{}{1, "1_left.jpg", "1_right.jpg", "1", "0", "0", "0", "0", "0", "0", "0"},
	)

	rows, err := ParseXLSX(bytes.NewReader(data), "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{ConditionCataract}, rows[0].Active())
	assert.Equal(t, []string{ConditionNormal}, rows[1].Active())

	_, err = ParseXLSX(bytes.NewReader(data), "NoSuchSheet")
	assert.Error(t, err)

	_, err = ParseXLSX(bytes.NewReader([]byte("garbage")), "")
	assert.Error(t, err)
}

func TestParseCSV_BOM(t *testing.T) {
	csvData := "\xEF\xBB\xBFLeft-Fundus,Right-Fundus,青光眼\n5_left.jpg,5_right.jpg,1\n"
	rows, err := ParseCSV(bytes.NewReader([]byte(csvData)))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{ConditionGlaucoma}, rows[0].Active())
}

func TestTable_LookupIsExact(t *testing.T) {
	first := Row{LeftFilename: "0_left.jpg", RightFilename: "0_right.jpg", Flags: map[string]int{ConditionAMD: 1}}
	dup := Row{LeftFilename: "0_left.jpg", RightFilename: "0_right.jpg", Flags: map[string]int{ConditionMyopia: 1}}
	table := NewTable("mem", []Row{first, dup})

	got, ok := table.Lookup("0_left.jpg", "0_right.jpg")
	require.True(t, ok)
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("first row should win (-want +got):\n%s", diff)
	}

	for _, pair := range [][2]string{
		{"0_LEFT.jpg", "0_right.jpg"},
		{"0_left.png", "0_right.png"},
		{"0_right.jpg", "0_left.jpg"},
	} {
		_, ok := table.Lookup(pair[0], pair[1])
		assert.False(t, ok, pair)
	}

	var nilTable *Table
	_, ok = nilTable.Lookup("0_left.jpg", "0_right.jpg")
	assert.False(t, ok)
	assert.Zero(t, nilTable.Len())
}

func TestSourceFor(t *testing.T) {
	assert.IsType(t, HTTPSource{}, SourceFor("https://x/store/data.xlsx", "", 0, nil))
	assert.IsType(t, StoreSource{}, SourceFor("db", "", 0, nil))
	assert.IsType(t, FileSource{}, SourceFor("./store/data.xlsx", "", 0, nil))
	assert.Equal(t, FormatCSV, DetectFormat("http://x/data.csv?v=2"))
	assert.Equal(t, FormatXLSX, DetectFormat("data"))
}

func TestLoader_FileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, os.WriteFile(path, buildXLSX(t,
		fullHeader,
		[]interface{}{0, "0_left.jpg", "0_right.jpg", 0, 0, 0, 1, 0, 0, 0, 0},
	), 0o644))

	loader := NewLoader(nil)
	table := loader.Load(context.Background(), FileSource{Path: path})
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, path, table.Source())

	// 重复加载得到相同结果
	again := loader.Load(context.Background(), FileSource{Path: path})
	assert.Equal(t, table.Rows(), again.Rows())
}

func TestLoader_HTTPSource(t *testing.T) {
	body := buildXLSX(t,
		fullHeader,
		[]interface{}{2, "2_left.jpg", "2_right.jpg", 0, 1, 1, 0, 0, 0, 0, 0},
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/store/data.xlsx" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	loader := NewLoader(nil)
	table := loader.Load(context.Background(), HTTPSource{URL: srv.URL + "/store/data.xlsx"})
	require.Equal(t, 1, table.Len())
	row, ok := table.Lookup("2_left.jpg", "2_right.jpg")
	require.True(t, ok)
	assert.Equal(t, []string{ConditionDiabetes, ConditionGlaucoma}, row.Active())

	missing := loader.Load(context.Background(), HTTPSource{URL: srv.URL + "/missing.xlsx"})
	assert.Zero(t, missing.Len())
}

type failingStore struct{}

func (failingStore) ListRows(ctx context.Context) ([]Row, error) {
	return nil, errors.New("db down")
}

func TestLoader_DegradesToEmpty(t *testing.T) {
	loader := NewLoader(nil)
	sources := []Source{
		nil,
		FileSource{Path: filepath.Join(t.TempDir(), "missing.xlsx")},
		StoreSource{Store: failingStore{}},
		StoreSource{},
	}
	for _, src := range sources {
		table := loader.Load(context.Background(), src)
		require.NotNil(t, table)
		assert.Zero(t, table.Len())
		assert.True(t, table.LoadedAt().IsZero())
	}

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("a,b\n1,2\n"), 0o644))
	assert.Zero(t, loader.Load(context.Background(), FileSource{Path: bad}).Len())
}

func TestTable_LoadedAt(t *testing.T) {
	assert.True(t, Empty("x").LoadedAt().IsZero())
	assert.False(t, NewTable("x", nil).LoadedAt().IsZero())

	var nilTable *Table
	assert.True(t, nilTable.LoadedAt().IsZero())
}
