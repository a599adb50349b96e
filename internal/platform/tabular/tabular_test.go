package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParse_CommaSeparated(t *testing.T) {
	in := "Nombre,Edad,Teléfono\nAna López,34,555-1234\nLuis Pérez,,\n"
	tbl, err := Parse(strings.NewReader(in), "pacientes.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"Nombre", "Edad", "Teléfono"}, tbl.Headers)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, 2, tbl.Rows[0].Line)
	assert.Equal(t, "Ana López", tbl.Rows[0].Values["Nombre"])
	assert.Equal(t, "555-1234", tbl.Rows[0].Values["Teléfono"])
	assert.Equal(t, 3, tbl.Rows[1].Line)
	v, ok := tbl.Rows[1].Get("Edad")
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestParse_StripsBOMAndSniffsSemicolon(t *testing.T) {
	in := "\uFEFFNombre;Notas\r\n\"Ana; hija\";control anual\r\n"
	tbl, err := Parse(strings.NewReader(in), "export.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"Nombre", "Notas"}, tbl.Headers)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "Ana; hija", tbl.Rows[0].Values["Nombre"])
	assert.Equal(t, "control anual", tbl.Rows[0].Values["Notas"])
}

func TestParse_TabAndPipe(t *testing.T) {
	for name, in := range map[string]string{
		"tab":  "name\tphone\nAna\t555\n",
		"pipe": "name|phone\nAna|555\n",
	} {
		t.Run(name, func(t *testing.T) {
			tbl, err := Parse(strings.NewReader(in), "")
			require.NoError(t, err)
			require.Len(t, tbl.Rows, 1)
			assert.Equal(t, "555", tbl.Rows[0].Values["phone"])
		})
	}
}

func TestParse_Windows1252Fallback(t *testing.T) {
	in := []byte("Nombre;Tel\xe9fono\nJos\xe9;555\n")
	tbl, err := Parse(bytes.NewReader(in), "legacy.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"Nombre", "Teléfono"}, tbl.Headers)
	assert.Equal(t, "José", tbl.Rows[0].Values["Nombre"])
}

func TestParse_RaggedRowsAndBlankLines(t *testing.T) {
	in := "a,b,c\n1\n\n,,\n4,5,6,7\n"
	tbl, err := Parse(strings.NewReader(in), "")
	require.NoError(t, err)

	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, map[string]string{"a": "1", "b": "", "c": ""}, tbl.Rows[0].Values)
	assert.Equal(t, 2, tbl.Rows[0].Line)
	assert.Equal(t, map[string]string{"a": "4", "b": "5", "c": "6"}, tbl.Rows[1].Values)
	assert.Equal(t, 5, tbl.Rows[1].Line)
}

func TestParse_RepeatedHeaderKeepsRightmostNonBlank(t *testing.T) {
	in := "Fecha,Fecha\n2024-01-02,\n2024-01-02,2024-03-04\n"
	tbl, err := Parse(strings.NewReader(in), "")
	require.NoError(t, err)

	assert.Equal(t, "2024-01-02", tbl.Rows[0].Values["Fecha"])
	assert.Equal(t, "2024-03-04", tbl.Rows[1].Values["Fecha"])
}

func TestParse_Empty(t *testing.T) {
	for _, in := range []string{"", "   \n\n", "\uFEFF"} {
		_, err := Parse(strings.NewReader(in), "x.csv")
		assert.ErrorIs(t, err, ErrEmpty)
	}
}

func TestParse_HeaderOnly(t *testing.T) {
	_, err := Parse(strings.NewReader("Nombre,Edad\n"), "x.csv")
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestParse_Workbook(t *testing.T) {
	f := excelize.NewFile()
	_, err := f.NewSheet("Vacia")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Nombre", "Edad"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Ana López", 34}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	tbl, err := Parse(buf, "pacientes.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"Nombre", "Edad"}, tbl.Headers)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "Ana López", tbl.Rows[0].Values["Nombre"])
	assert.Equal(t, "34", tbl.Rows[0].Values["Edad"])
	assert.Equal(t, 2, tbl.Rows[0].Line)
}

func TestParse_BrokenWorkbook(t *testing.T) {
	_, err := Parse(strings.NewReader("PK\x03\x04garbage"), "x.xlsx")
	assert.Error(t, err)
}

func TestSniffDelimiter(t *testing.T) {
	cases := map[string]rune{
		"a,b,c\n":             ',',
		"a;b;c\n":             ';',
		"a\tb\tc\n":           '\t',
		"a|b|c\n":             '|',
		"\"x;y;z\",b\n":       ',',
		"\n\nsolo\n":          ',',
		"a;b,c;d\n1;2,3;4\n": ';',
	}
	for in, want := range cases {
		assert.Equalf(t, want, SniffDelimiter(in), "input %q", in)
	}
}
