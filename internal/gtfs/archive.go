package gtfs

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/jamespfennell/gtfs"
)

// gtfs.ParseStatic reads an empty pickup_type or drop_off_type as "no service" and
// drops transfers that start and end at the same stop. Both are read from the
// archive directly.

type stopTimeKey struct {
	tripID   string
	sequence int
}

type stopTimeRow struct {
	TripID       string `csv:"trip_id"`
	StopSequence string `csv:"stop_sequence"`
	PickupType   string `csv:"pickup_type"`
	DropOffType  string `csv:"drop_off_type"`
}

type transferRow struct {
	FromStopID      string `csv:"from_stop_id"`
	ToStopID        string `csv:"to_stop_id"`
	TransferType    string `csv:"transfer_type"`
	MinTransferTime string `csv:"min_transfer_time"`
}

// archiveTables are the stop_times.txt and transfers.txt columns the parser loses.
type archiveTables struct {
	noPickup  map[stopTimeKey]bool
	noDropOff map[stopTimeKey]bool
	transfers []transferRow
}

// readArchiveTables reads stop time restrictions and transfers from a GTFS zip.
// Only an explicit 1 disables pickup or drop off.
func readArchiveTables(raw []byte) (*archiveTables, error) {
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("opening GTFS archive: %w", err)
	}

	tables := &archiveTables{
		noPickup:  make(map[stopTimeKey]bool),
		noDropOff: make(map[stopTimeKey]bool),
	}

	var stopTimes []stopTimeRow
	if err := readArchiveFile(reader, "stop_times.txt", &stopTimes); err != nil {
		return nil, err
	}
	for _, row := range stopTimes {
		pickup, dropOff := strings.TrimSpace(row.PickupType), strings.TrimSpace(row.DropOffType)
		if pickup != "1" && dropOff != "1" {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimSpace(row.StopSequence))
		if err != nil {
			continue
		}
		key := stopTimeKey{tripID: strings.TrimSpace(row.TripID), sequence: seq}
		if pickup == "1" {
			tables.noPickup[key] = true
		}
		if dropOff == "1" {
			tables.noDropOff[key] = true
		}
	}

	if err := readArchiveFile(reader, "transfers.txt", &tables.transfers); err != nil {
		return nil, err
	}
	return tables, nil
}

// readArchiveFile decodes name into out. A missing or empty file leaves out untouched.
func readArchiveFile(reader *zip.Reader, name string, out any) error {
	for _, f := range reader.File {
		if path.Base(f.Name) != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", name, err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
		if len(bytes.TrimSpace(content)) == 0 {
			return nil
		}
		if err := gocsv.UnmarshalCSV(gocsv.LazyCSVReader(bytes.NewReader(content)), out); err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
		return nil
	}
	return nil
}

// transfersFromStatic is the fallback when no archive is at hand.
func transfersFromStatic(static *gtfs.Static) []transferRow {
	rows := make([]transferRow, 0, len(static.Transfers))
	for _, tr := range static.Transfers {
		if tr.From == nil || tr.To == nil {
			continue
		}
		row := transferRow{
			FromStopID:   tr.From.Id,
			ToStopID:     tr.To.Id,
			TransferType: strconv.Itoa(int(tr.Type)),
		}
		if tr.MinTransferTime != nil {
			row.MinTransferTime = strconv.Itoa(int(*tr.MinTransferTime))
		}
		rows = append(rows, row)
	}
	return rows
}

func (r transferRow) kind() int {
	k, err := strconv.Atoi(strings.TrimSpace(r.TransferType))
	if err != nil {
		return transferRecommended
	}
	return k
}

func (r transferRow) minTime() int {
	t, err := strconv.Atoi(strings.TrimSpace(r.MinTransferTime))
	if err != nil || t < 0 {
		return 0
	}
	return t
}
