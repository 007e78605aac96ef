// Package export writes analysis records to XLSX workbooks and reads them back.
package export

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/store"
)

// SheetName is the worksheet holding one row per analysis.
const SheetName = "Analyses"

const (
	colID        = "id"
	colTimestamp = "timestamp"
	colFileName  = "fileName"
	colFlags     = "flags"
	colScore     = "score"
	colLevel     = "level"
	colTags      = "tags"
	colDetail    = "detail"
)

// detail carries what the flat columns cannot, so an import is lossless.
type detail struct {
	Flags       []model.RuleFlag  `json:"flags"`
	RiskProfile model.RiskProfile `json:"riskProfile"`
}

// Header returns the column names in sheet order.
func Header() []string {
	h := []string{colID, colTimestamp, colFileName}
	for _, f := range model.AllFields() {
		h = append(h, string(f))
	}
	return append(h, colFlags, colScore, colLevel, colTags, colDetail)
}

// Build renders records into a new workbook.
func Build(records []model.AnalysisRecord) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, name := range Header() {
		header.AddCell().SetString(name)
	}

	for _, rec := range records {
		d, err := json.Marshal(detail{Flags: rec.Flags, RiskProfile: rec.RiskProfile})
		if err != nil {
			return nil, eris.Wrapf(err, "export: marshal detail of %s", rec.ID)
		}

		row := sheet.AddRow()
		row.AddCell().SetString(rec.ID)
		row.AddCell().SetString(rec.Timestamp.UTC().Format(time.RFC3339))
		row.AddCell().SetString(rec.FileName)
		for _, name := range model.AllFields() {
			row.AddCell().SetString(rec.Fields[name])
		}
		ids := make([]string, len(rec.Flags))
		for i, fl := range rec.Flags {
			ids[i] = fl.RuleID
		}
		row.AddCell().SetString(strings.Join(ids, ","))
		row.AddCell().SetInt(rec.RiskProfile.OverallScore)
		row.AddCell().SetString(string(rec.RiskProfile.RiskLevel))
		row.AddCell().SetString(strings.Join(rec.Tags, ","))
		row.AddCell().SetString(string(d))
	}
	return f, nil
}

// Write streams the workbook for records to w.
func Write(w io.Writer, records []model.AnalysisRecord) error {
	f, err := Build(records)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write workbook")
}

// WriteFile saves the workbook for records at path.
func WriteFile(path string, records []model.AnalysisRecord) error {
	f, err := Build(records)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Save(path), "export: save workbook")
}

// ReadFile parses a workbook written by WriteFile.
func ReadFile(path string) ([]store.SaveRequest, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open file")
	}
	return Read(f)
}

// ReadBinary parses workbook bytes.
func ReadBinary(b []byte) ([]store.SaveRequest, error) {
	f, err := xlsx.OpenBinary(b)
	if err != nil {
		return nil, eris.Wrap(err, "export: open workbook")
	}
	return Read(f)
}

// Read converts the analyses sheet of f into save requests. Columns are
// located by header name so hand-edited workbooks with reordered or missing
// columns still load. Rows without an id are skipped.
func Read(f *xlsx.File) ([]store.SaveRequest, error) {
	sheet, ok := f.Sheet[SheetName]
	if !ok {
		if len(f.Sheets) == 0 {
			return nil, eris.New("export: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.New("export: missing header row")
	}

	index := make(map[string]int)
	for i, cell := range sheet.Rows[0].Cells {
		index[strings.TrimSpace(cell.String())] = i
	}
	if _, ok := index[colID]; !ok {
		return nil, eris.Errorf("export: header has no %q column", colID)
	}

	var out []store.SaveRequest
	for n, row := range sheet.Rows[1:] {
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row.Cells) {
				return ""
			}
			return strings.TrimSpace(row.Cells[i].String())
		}

		id := get(colID)
		if id == "" {
			continue
		}
		req, err := parseRow(id, get)
		if err != nil {
			return nil, eris.Wrapf(err, "export: row %d", n+2)
		}
		out = append(out, req)
	}
	return out, nil
}

func parseRow(id string, get func(string) string) (store.SaveRequest, error) {
	req := store.SaveRequest{ID: id, FileName: get(colFileName), Fields: model.CreditFields{}}

	if ts := get(colTimestamp); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return req, eris.Wrapf(err, "parse timestamp %q", ts)
		}
		req.Timestamp = t
	}
	for _, name := range model.AllFields() {
		req.Fields.Set(name, get(string(name)))
	}
	if tags := get(colTags); tags != "" {
		req.Tags = splitList(tags)
	}

	if d := get(colDetail); d != "" {
		var det detail
		if err := json.Unmarshal([]byte(d), &det); err != nil {
			return req, eris.Wrap(err, "unmarshal detail")
		}
		req.Flags, req.RiskProfile = det.Flags, det.RiskProfile
		return req, nil
	}

	// Without the detail column only rule IDs and the score survive.
	for _, ruleID := range splitList(get(colFlags)) {
		req.Flags = append(req.Flags, model.RuleFlag{RuleID: ruleID})
	}
	if s := get(colScore); s != "" {
		score, err := strconv.Atoi(s)
		if err != nil {
			return req, eris.Wrapf(err, "parse score %q", s)
		}
		req.RiskProfile.OverallScore = score
	}
	req.RiskProfile.RiskLevel = model.RiskLevel(get(colLevel))
	return req, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
