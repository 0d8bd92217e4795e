package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"

	"bikeshare-trips/internal/bike"
)

// DurationRow is one training row for the duration model.
type DurationRow struct {
	HourSin, HourCos float64
	WeekSin, WeekCos float64
	DaySin, DayCos   float64
	Weekend          bool
	IsStation        bool
	Season           Season
	StartStation     string // empty unless the trip is station based
	FalseBooking     bool
	DurationSeconds  float64
}

func BuildDurationRows(trips []bike.Trip) []DurationRow {
	rows := make([]DurationRow, 0, len(trips))
	for _, t := range trips {
		tf := TimeFeatures(t.StartTime)
		r := DurationRow{
			Weekend:         t.Weekend,
			IsStation:       t.IsStation,
			Season:          tf.Season,
			FalseBooking:    FalseBooking(t),
			DurationSeconds: t.Duration.Seconds(),
		}
		r.HourSin, r.HourCos = Cyclical(float64(tf.Hour), HourPeriod)
		r.WeekSin, r.WeekCos = Cyclical(float64(tf.WeekOfYear), WeekPeriod)
		r.DaySin, r.DayCos = Cyclical(float64(tf.DayOfWeek), DayPeriod)
		if t.IsStation {
			r.StartStation = t.Start.PlaceName
		}
		rows = append(rows, r)
	}
	return rows
}

// DirectionRow is one training row for the destination model.
type DirectionRow struct {
	Time
	Weekend   bool
	IsStation bool
	Direction Direction
}

func BuildDirectionRows(trips []bike.Trip, university Places) []DirectionRow {
	rows := make([]DirectionRow, 0, len(trips))
	for _, t := range trips {
		rows = append(rows, DirectionRow{
			Time:      TimeFeatures(t.StartTime),
			Weekend:   t.Weekend,
			IsStation: t.IsStation,
			Direction: DirectionOf(t, university),
		})
	}
	return rows
}

// WriteDurationCSV writes rows with season and start station one-hot encoded.
// Station columns are named "station=<name>" in sorted order.
func WriteDurationCSV(w io.Writer, rows []DurationRow) error {
	var stations []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.StartStation != "" && !seen[r.StartStation] {
			seen[r.StartStation] = true
			stations = append(stations, r.StartStation)
		}
	}
	slices.Sort(stations)

	header := []string{"HOUR_SIN", "HOUR_COS", "WEEK_OF_YEAR_SIN", "WEEK_OF_YEAR_COS", "DAY_OF_WEEK_SIN", "DAY_OF_WEEK_COS",
		"weekend", "is_station", "false_booking"}
	header = append(header, seasonNames[:]...)
	for _, s := range stations {
		header = append(header, "station="+s)
	}
	header = append(header, "duration")

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(header))
	for _, r := range rows {
		rec = rec[:0]
		for _, f := range []float64{r.HourSin, r.HourCos, r.WeekSin, r.WeekCos, r.DaySin, r.DayCos} {
			rec = append(rec, strconv.FormatFloat(f, 'f', 6, 64))
		}
		rec = append(rec, bit(r.Weekend), bit(r.IsStation), bit(r.FalseBooking))
		for s := Winter; s <= Fall; s++ {
			rec = append(rec, bit(r.Season == s))
		}
		for _, s := range stations {
			rec = append(rec, bit(r.StartStation == s))
		}
		rec = append(rec, strconv.FormatFloat(r.DurationSeconds, 'f', -1, 64))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDirectionCSV writes rows with ordinal time features and the label.
func WriteDirectionCSV(w io.Writer, rows []DirectionRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"HOUR", "WEEK_OF_YEAR", "DAY_OF_WEEK", "season", "weekend", "is_station", "direction"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Hour),
			strconv.Itoa(r.WeekOfYear),
			strconv.Itoa(r.DayOfWeek),
			strconv.Itoa(int(r.Season)),
			bit(r.Weekend),
			bit(r.IsStation),
			string(r.Direction),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
