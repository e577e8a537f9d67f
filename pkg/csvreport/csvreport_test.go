package csvreport

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []Row {
	return []Row{
		{Time: "2026-01-01T00:00:00Z", TimeStr: "00:00", SoC: [4]float64{0.1, 0.3, 0.5, 0.7}, Emissions: 250, Limit: [4]int64{260, 260, 260, 0}},
		{Time: "2026-01-01T00:05:00Z", TimeStr: "00:05", SoC: [4]float64{0.1, 0.3, 0.5, 0.7}, Emissions: 240, Limit: [4]int64{260, 260, 260, 0}},
	}
}

func TestWriteAndReadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "day.csv")

	require.NoError(t, WriteFile(path, sampleRows()))

	header, rows, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Header, header)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-01-01T00:00:00Z", rows[0][0])
}

func TestMergeSoCOnly(t *testing.T) {
	dir := t.TempDir()
	day1 := filepath.Join(dir, "day1.csv")
	day2 := filepath.Join(dir, "day2.csv")
	require.NoError(t, WriteFile(day1, sampleRows()))
	require.NoError(t, WriteFile(day2, sampleRows()))

	out := filepath.Join(dir, "merged.csv")
	require.NoError(t, Merge([]string{day1, day2}, []string{"day1", "day2"}, FilterSoCOnly, out))

	header, rows, err := ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"time", "timeStr",
		"day1_soc10", "day1_soc30", "day1_soc50", "day1_soc70",
		"day2_soc10", "day2_soc30", "day2_soc50", "day2_soc70",
	}, header)
	assert.Len(t, rows, 2)
}

func TestMergeEmissionsOnly(t *testing.T) {
	dir := t.TempDir()
	day1 := filepath.Join(dir, "day1.csv")
	require.NoError(t, WriteFile(day1, sampleRows()))

	out := filepath.Join(dir, "merged.csv")
	require.NoError(t, Merge([]string{day1}, []string{"day1"}, FilterEmissionsOnly, out))

	header, _, err := ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"time", "timeStr",
		"day1_emissions", "day1_limit10", "day1_limit30", "day1_limit50", "day1_limit70",
	}, header)
}

func TestMergeRequiresMatchingLabels(t *testing.T) {
	err := Merge([]string{"a.csv"}, nil, FilterAll, "out.csv")
	assert.Error(t, err)
}
