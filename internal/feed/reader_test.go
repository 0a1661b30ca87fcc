package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSnapshotRow(timestamp string) string {
	fields := make([]string, 0, snapshotColumns)
	fields = append(fields, "0", timestamp)
	for i := 0; i < depthLevels; i++ {
		fields = append(fields, "100.00000") // ask price
	}
	for i := 0; i < depthLevels; i++ {
		fields = append(fields, "1.00000") // ask volume
	}
	for i := 0; i < depthLevels; i++ {
		fields = append(fields, "99.00000") // bid price
	}
	for i := 0; i < depthLevels; i++ {
		fields = append(fields, "2.00000") // bid volume
	}
	return strings.Join(fields, ",")
}

func TestReadSnapshots_ParsesFixedPointLevels(t *testing.T) {
	header := "header\n"
	csvText := header + buildSnapshotRow("1000") + "\n"

	snaps, err := ReadSnapshots(strings.NewReader(csvText))
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	assert.EqualValues(t, 1000, snaps[0].Timestamp)
	require.Len(t, snaps[0].Asks, depthLevels)
	assert.EqualValues(t, 100_00000, snaps[0].Asks[0].Price)
	assert.EqualValues(t, 1_00000, snaps[0].Asks[0].Volume)
	assert.EqualValues(t, 99_00000, snaps[0].Bids[0].Price)
	assert.EqualValues(t, 2_00000, snaps[0].Bids[0].Volume)
}

func TestReadSnapshots_RejectsWrongColumnCount(t *testing.T) {
	csvText := "header\n0,1000,1,2,3\n"
	_, err := ReadSnapshots(strings.NewReader(csvText))
	assert.Error(t, err)
}

func TestReadTrades_ParsesFixedPointAndBool(t *testing.T) {
	csvText := "header\n0,500,1.50000,100.25000,True\n0,600,2.00000,101.00000,False\n"
	trades, err := ReadTrades(strings.NewReader(csvText))
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.EqualValues(t, 500, trades[0].Timestamp)
	assert.EqualValues(t, 1_50000, trades[0].Volume)
	assert.EqualValues(t, 100_25000, trades[0].Price)
	assert.True(t, trades[0].IsBuyerMaker)

	assert.False(t, trades[1].IsBuyerMaker)
}

func TestReadTrades_RejectsUnrecognizedBool(t *testing.T) {
	csvText := "header\n0,500,1.0,100.0,Maybe\n"
	_, err := ReadTrades(strings.NewReader(csvText))
	assert.Error(t, err)
}

func TestReadSnapshots_EmptyBodyReturnsNoRows(t *testing.T) {
	snaps, err := ReadSnapshots(strings.NewReader("header\n"))
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
