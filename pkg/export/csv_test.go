package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCSVUsesDanishDialect(t *testing.T) {
	table := Table{
		Columns: []string{"Skole", "Skoleår", "Type"},
		Rows: [][]string{
			{"Nørre Skole", "2024/25", "Forankring"},
			{"Bakkeskolen", "2024/25"},
		},
	}

	rendered, err := RenderCSV(table)
	require.NoError(t, err)

	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, rendered[:3])
	body := string(rendered[3:])
	assert.Equal(t, "Skole;Skoleår;Type\nNørre Skole;2024/25;Forankring\nBakkeskolen;2024/25;\n", body)
}

func TestRenderCSVRequiresColumns(t *testing.T) {
	_, err := RenderCSV(Table{})
	require.Error(t, err)
}

func TestRenderPDFProducesDocument(t *testing.T) {
	table := Table{
		Title:   "Manglende fakturaer 2024/25",
		Columns: []string{"Skole", "Skoleår"},
		Rows:    [][]string{{"Nørre Skole", "2024/25"}},
	}

	rendered, err := RenderPDF(table)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(rendered[:4]))
}
