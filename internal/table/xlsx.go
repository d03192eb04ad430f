package table

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"strconv"
	"strings"
	"time"
)

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

// Load reads the selected sheet. If no sheet is selected, the first one is used.
// The first row is the header.
func (xlsxLoader) Load(p string, opt Options) (*RowSet, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	wb := workbook{
		sheets: parseWorkbook(readZipFile(zr, "xl/workbook.xml")),
		rels:   parseRelationships(readZipFile(zr, "xl/_rels/workbook.xml.rels")),
		shared: parseSharedStrings(readZipFile(zr, "xl/sharedStrings.xml")),
		dates:  parseDateStyles(readZipFile(zr, "xl/styles.xml")),
	}
	target, err := wb.resolve(opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path.Base(p), err)
	}
	sheetXML := readZipFile(zr, target)
	if sheetXML == nil {
		return nil, fmt.Errorf("%s: sheet part %s missing", path.Base(p), target)
	}
	rr := &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(sheetXML)), wb: &wb}
	header, ok := rr.Next()
	if !ok {
		return New(nil, nil)
	}
	var records [][]string
	for {
		rec, ok := rr.Next()
		if !ok {
			break
		}
		if isBlank(rec) {
			continue
		}
		if opt.MaxRows > 0 && len(records) >= opt.MaxRows {
			break
		}
		if len(rec) > len(header) {
			rec = rec[:len(header)]
		}
		records = append(records, rec)
	}
	return FromStrings(header, records, opt)
}

type wbSheet struct {
	Name    string
	SheetID int
	RID     string
}

type workbook struct {
	sheets []wbSheet
	rels   map[string]string
	shared []string
	// dates marks cellXfs style indexes that carry a date number format.
	dates map[int]bool
}

func (wb *workbook) resolve(name string, index int) (string, error) {
	if name != "" {
		for _, s := range wb.sheets {
			if strings.EqualFold(s.Name, name) {
				if rel, ok := wb.rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
			}
		}
		names := make([]string, len(wb.sheets))
		for i, s := range wb.sheets {
			names[i] = s.Name
		}
		return "", fmt.Errorf("sheet %q not found (available: %s)", name, strings.Join(names, ", "))
	}
	if index <= 0 {
		index = 1
	}
	if index <= len(wb.sheets) {
		if rel, ok := wb.rels[wb.sheets[index-1].RID]; ok {
			return normalizeRelPath(rel), nil
		}
	}
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", index)), nil
}

func parseWorkbook(data []byte) []wbSheet {
	var sheets []wbSheet
	eachStart(data, func(se xml.StartElement) {
		if se.Name.Local != "sheet" {
			return
		}
		var s wbSheet
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "sheetId":
				s.SheetID, _ = strconv.Atoi(a.Value)
			case "id":
				s.RID = a.Value
			}
		}
		sheets = append(sheets, s)
	})
	return sheets
}

func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	eachStart(data, func(se xml.StartElement) {
		if se.Name.Local != "Relationship" {
			return
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	})
	return out
}

// builtinDateFormats are the predefined numFmtId values that render dates.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	45: true, 46: true, 47: true,
}

func parseDateStyles(data []byte) map[int]bool {
	custom := map[int]bool{}
	var xfs []int
	inCellXfs := false
	dec := xml.NewDecoder(bytes.NewReader(data))
	for len(data) > 0 {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "numFmt":
				var id int
				var code string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "numFmtId":
						id, _ = strconv.Atoi(a.Value)
					case "formatCode":
						code = a.Value
					}
				}
				custom[id] = isDateFormatCode(code)
			case "cellXfs":
				inCellXfs = true
			case "xf":
				if inCellXfs {
					id := 0
					for _, a := range se.Attr {
						if a.Name.Local == "numFmtId" {
							id, _ = strconv.Atoi(a.Value)
						}
					}
					xfs = append(xfs, id)
				}
			}
		case xml.EndElement:
			if se.Name.Local == "cellXfs" {
				inCellXfs = false
			}
		}
	}
	out := map[int]bool{}
	for i, id := range xfs {
		if builtinDateFormats[id] || custom[id] {
			out[i] = true
		}
	}
	return out
}

func isDateFormatCode(code string) bool {
	var b strings.Builder
	quoted := false
	for _, r := range code {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		default:
			b.WriteRune(r)
		}
	}
	c := strings.ToLower(b.String())
	// Drop color and locale sections such as [Red] or [$-409].
	for {
		i := strings.Index(c, "[")
		j := strings.Index(c, "]")
		if i < 0 || j < i {
			break
		}
		c = c[:i] + c[j+1:]
	}
	return strings.ContainsAny(c, "ymd") || strings.Contains(c, "h:")
}

func parseSharedStrings(data []byte) []string {
	var out []string
	var buf strings.Builder
	inT := false
	dec := xml.NewDecoder(bytes.NewReader(data))
	for len(data) > 0 {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
	return out
}

func eachStart(data []byte, fn func(xml.StartElement)) {
	if len(data) == 0 {
		return
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if se, ok := tok.(xml.StartElement); ok {
			fn(se)
		}
	}
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

type sheetRowReader struct {
	dec *xml.Decoder
	wb  *workbook
}

// Next returns the cells of the next <row>, placed by their column reference.
func (r *sheetRowReader) Next() ([]string, bool) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch {
			case se.Name.Local == "row":
				inRow = true
				row = row[:0]
			case inRow && se.Name.Local == "c":
				var ref, typ string
				style := -1
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						ref = a.Value
					case "t":
						typ = a.Value
					case "s":
						style, _ = strconv.Atoi(a.Value)
					}
				}
				col := colIndexFromRef(ref)
				if col < 0 {
					col = len(row)
				}
				for len(row) <= col {
					row = append(row, "")
				}
				row[col] = r.cellValue(typ, style)
			}
		case xml.EndElement:
			if se.Name.Local == "row" && inRow {
				return row, true
			}
		}
	}
}

func (r *sheetRowReader) cellValue(typ string, style int) string {
	var val string
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				var sb strings.Builder
				for {
					tk, err := r.dec.Token()
					if err != nil {
						break
					}
					if ed, ok := tk.(xml.EndElement); ok && ed.Name.Local == se.Name.Local {
						break
					}
					if ch, ok := tk.(xml.CharData); ok {
						sb.Write(ch)
					}
				}
				val += sb.String()
			}
		case xml.EndElement:
			if se.Name.Local != "c" {
				continue
			}
			switch {
			case typ == "s":
				idx, err := strconv.Atoi(strings.TrimSpace(val))
				if err != nil || idx < 0 || idx >= len(r.wb.shared) {
					return ""
				}
				return r.wb.shared[idx]
			case typ == "" || typ == "n":
				if style >= 0 && r.wb.dates[style] {
					if serial, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
						return excelSerialToTime(serial).Format(TimestampLayout)
					}
				}
			}
			return val
		}
	}
}

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func excelSerialToTime(serial float64) time.Time {
	days := math.Floor(serial)
	secs := math.Round((serial - days) * 86400)
	return excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second)
}

// colIndexFromRef maps a cell reference like "C12" to a 0-based column index.
// It returns -1 when the reference carries no column letters.
func colIndexFromRef(ref string) int {
	idx := 0
	n := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
		n++
	}
	if n == 0 {
		return -1
	}
	return idx - 1
}

// normalizeRelPath converts relationship targets to ZIP entry names.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
