// Package feed loads the two CSV tapes a backtest run replays: periodic
// order-book snapshots (top-50 price/volume levels per side) and the
// historical trade tape. Column layout and fixed-point parsing are
// grounded in original_source/BackTest/scanner.{h,cpp}; the CSV mechanics
// and decimal-to-fixed-point conversion follow
// _examples/mkhoshkam-orderbook's use of github.com/shopspring/decimal.
package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"ledgerbook/internal/book"
	"ledgerbook/internal/kernel"
	"ledgerbook/internal/order"
)

// depthLevels is the number of price levels the snapshot feed carries per
// side (spec.md's 50-level top-of-book).
const depthLevels = 50

// snapshotColumns is the fixed row width of the snapshot CSV: one index
// column, one timestamp column, then depthLevels columns each of
// ask price, ask volume, bid price, bid volume.
const snapshotColumns = 2 + 4*depthLevels

// tradeColumns is the fixed row width of the trade-tape CSV: index,
// timestamp, volume, price, is_buyer_maker.
const tradeColumns = 5

// fixedPointScale is the number of fractional decimal digits prices and
// volumes are normalized to, matching spec.md's 1/100,000 unit.
const fixedPointScale = 5

// ReadSnapshots parses the order-book snapshot CSV from r. The first row
// is assumed to be a header and is skipped. Every data row must have
// exactly snapshotColumns fields.
func ReadSnapshots(r io.Reader) ([]kernel.Snapshot, error) {
	rows, err := readAllRows(r, snapshotColumns)
	if err != nil {
		return nil, fmt.Errorf("feed: reading snapshots: %w", err)
	}

	out := make([]kernel.Snapshot, 0, len(rows))
	for i, row := range rows {
		snap, err := parseSnapshotRow(row)
		if err != nil {
			return nil, fmt.Errorf("feed: snapshot row %d: %w", i, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// ReadTrades parses the historical trade tape CSV from r, skipping the
// header row. Every data row must have exactly tradeColumns fields.
func ReadTrades(r io.Reader) ([]order.Trade, error) {
	rows, err := readAllRows(r, tradeColumns)
	if err != nil {
		return nil, fmt.Errorf("feed: reading trades: %w", err)
	}

	out := make([]order.Trade, 0, len(rows))
	for i, row := range rows {
		trade, err := parseTradeRow(row)
		if err != nil {
			return nil, fmt.Errorf("feed: trade row %d: %w", i, err)
		}
		out = append(out, trade)
	}
	return out, nil
}

func readAllRows(r io.Reader, wantColumns int) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}
		if len(row) != wantColumns {
			return nil, fmt.Errorf("row has %d columns, want %d", len(row), wantColumns)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseSnapshotRow(row []string) (kernel.Snapshot, error) {
	const timestampCol = 1
	const askPriceStart = timestampCol + 1
	const askVolumeStart = askPriceStart + depthLevels
	const bidPriceStart = askVolumeStart + depthLevels
	const bidVolumeStart = bidPriceStart + depthLevels

	ts, err := parseUint(row[timestampCol])
	if err != nil {
		return kernel.Snapshot{}, fmt.Errorf("timestamp: %w", err)
	}

	asks := make([]book.Level, depthLevels)
	bids := make([]book.Level, depthLevels)
	for i := 0; i < depthLevels; i++ {
		askPrice, err := parseFixedPoint(row[askPriceStart+i])
		if err != nil {
			return kernel.Snapshot{}, fmt.Errorf("ask price %d: %w", i, err)
		}
		askVolume, err := parseFixedPoint(row[askVolumeStart+i])
		if err != nil {
			return kernel.Snapshot{}, fmt.Errorf("ask volume %d: %w", i, err)
		}
		bidPrice, err := parseFixedPoint(row[bidPriceStart+i])
		if err != nil {
			return kernel.Snapshot{}, fmt.Errorf("bid price %d: %w", i, err)
		}
		bidVolume, err := parseFixedPoint(row[bidVolumeStart+i])
		if err != nil {
			return kernel.Snapshot{}, fmt.Errorf("bid volume %d: %w", i, err)
		}
		asks[i] = book.Level{Price: askPrice, Volume: askVolume}
		bids[i] = book.Level{Price: bidPrice, Volume: bidVolume}
	}

	return kernel.Snapshot{Timestamp: ts, Asks: asks, Bids: bids}, nil
}

func parseTradeRow(row []string) (order.Trade, error) {
	const timestampCol = 1
	const volumeCol = 2
	const priceCol = 3
	const isBuyerMakerCol = 4

	ts, err := parseUint(row[timestampCol])
	if err != nil {
		return order.Trade{}, fmt.Errorf("timestamp: %w", err)
	}
	volume, err := parseFixedPoint(row[volumeCol])
	if err != nil {
		return order.Trade{}, fmt.Errorf("volume: %w", err)
	}
	price, err := parseFixedPoint(row[priceCol])
	if err != nil {
		return order.Trade{}, fmt.Errorf("price: %w", err)
	}
	isBuyerMaker, err := parseBool(row[isBuyerMakerCol])
	if err != nil {
		return order.Trade{}, fmt.Errorf("is_buyer_maker: %w", err)
	}

	return order.Trade{Timestamp: ts, Volume: volume, Price: price, IsBuyerMaker: isBuyerMaker}, nil
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// parseFixedPoint converts a decimal string into the fixed-point uint64
// representation spec.md requires: the value scaled up by 10^fixedPointScale
// and truncated to an integer, matching the original scanner's ToInt.
func parseFixedPoint(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("value %q is negative", s)
	}
	scaled := d.Shift(fixedPointScale).Truncate(0)
	return uint64(scaled.IntPart()), nil
}

func parseBool(s string) (bool, error) {
	switch s {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	default:
		return false, fmt.Errorf("value %q is not a recognized boolean", s)
	}
}
