// Package report renders run results into analyst-facing artifacts: a
// CSV ledger of per-scene decisions and an xlsx workbook of band
// statistics.
package report

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/urbanclimate/suhi-cli/internal/anomaly"
	"github.com/urbanclimate/suhi-cli/internal/composite"
)

// Summary collects everything the workbook reports on one run.
type Summary struct {
	City             string
	Season           string
	Year             int
	ScenesConsidered int
	ScenesAccepted   int
	Bands            []anomaly.BandResult
}

// WriteSceneLedger writes the per-scene accept/reject decisions as CSV.
func WriteSceneLedger(path string, decisions []composite.Decision) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&decisions, f); err != nil {
		return eris.Wrapf(err, "report: write scene ledger %s", path)
	}
	return nil
}

// WriteWorkbook writes the run summary and per-band statistics as an
// xlsx workbook with an overview sheet and a band sheet.
func WriteWorkbook(path string, s Summary) error {
	f := xlsx.NewFile()

	overview, err := f.AddSheet("Overview")
	if err != nil {
		return eris.Wrap(err, "report: add overview sheet")
	}
	addPair := func(key, value string) {
		row := overview.AddRow()
		row.AddCell().SetString(key)
		row.AddCell().SetString(value)
	}
	addPair("City", s.City)
	addPair("Season", s.Season)
	addPair("Year", fmt.Sprintf("%d", s.Year))
	addPair("Scenes considered", fmt.Sprintf("%d", s.ScenesConsidered))
	addPair("Scenes accepted", fmt.Sprintf("%d", s.ScenesAccepted))
	addPair("Elevation bands", fmt.Sprintf("%d", len(s.Bands)))

	bands, err := f.AddSheet("Elevation Bands")
	if err != nil {
		return eris.Wrap(err, "report: add bands sheet")
	}
	header := bands.AddRow()
	for _, h := range []string{
		"Band", "Lower (m)", "Upper (m)",
		"Mean urban LST (C)", "Mean rural LST (C)", "Urban-rural delta (C)",
		"Band min (C)", "Band max (C)", "Degenerate",
	} {
		header.AddCell().SetString(h)
	}
	for _, b := range s.Bands {
		row := bands.AddRow()
		row.AddCell().SetInt(b.Band.Index)
		row.AddCell().SetFloat(b.Band.Lower)
		row.AddCell().SetFloat(b.Band.Upper)
		row.AddCell().SetFloat(b.MeanUrbanTemp)
		row.AddCell().SetFloat(b.MeanRuralTemp)
		row.AddCell().SetFloat(b.MeanUrbanTemp - b.MeanRuralTemp)
		row.AddCell().SetFloat(b.BandMin)
		row.AddCell().SetFloat(b.BandMax)
		row.AddCell().SetBool(b.Degenerate)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save workbook %s", path)
	}
	return nil
}
