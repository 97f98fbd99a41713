package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Substitutions",
		Columns: []string{"Status", "Teacher", "Substitute"},
		Rows: []map[string]string{
			{"Status": "active", "Teacher": "teacher@school.no", "Substitute": "sub@school.no"},
			{"Status": "expired", "Teacher": "other@school.no", "Substitute": "sub@school.no"},
		},
	}
}

func TestCSVRenderKeepsColumnOrder(t *testing.T) {
	raw, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Status", "Teacher", "Substitute"}, records[0])
	assert.Equal(t, "active", records[1][0])
	assert.Equal(t, "other@school.no", records[2][1])
}

func TestCSVRenderRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestCSVRenderMissingCellsAreEmpty(t *testing.T) {
	data := sampleDataset()
	data.Rows = []map[string]string{{"Status": "pending"}}

	raw, err := NewCSVExporter().Render(data)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"pending", "", ""}, records[1])
}

func TestPDFRenderProducesDocument(t *testing.T) {
	raw, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}

func TestPDFRenderRequiresColumns(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}
