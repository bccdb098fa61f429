package table

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrSheetNotFound is returned when a named worksheet is absent.
var ErrSheetNotFound = errors.New("sheet not found")

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

func (xlsxLoader) Load(p string, opt Options) (*Table, error) {
	header, rows, err := readXLSX(p, opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, err
	}
	return build(filepath.Base(p), header, rows, opt), nil
}

type workbookSheet struct {
	name    string
	sheetID int
	relID   string
}

// workbook is an opened .xlsx package.
type workbook struct {
	zr     *zip.Reader
	sheets []workbookSheet
	rels   map[string]string
	shared []string
	// dateStyles[i] reports whether cell style i carries a date format.
	dateStyles []bool
	date1904   bool
}

func openWorkbook(p string) (*workbook, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.Wrap(err, "read xlsx")
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, errors.Wrap(err, "open xlsx")
	}
	wb := &workbook{zr: zr}
	wb.sheets, wb.date1904 = parseWorkbook(wb.file("xl/workbook.xml"))
	wb.dateStyles = parseDateStyles(wb.file("xl/styles.xml"))
	wb.rels = parseRelationships(wb.file("xl/_rels/workbook.xml.rels"))
	wb.shared = parseSharedStrings(wb.file("xl/sharedStrings.xml"))
	return wb, nil
}

func (wb *workbook) file(name string) []byte {
	for _, f := range wb.zr.File {
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

// sheetPath resolves the zip entry of a sheet selected by name, or by 1-based
// index when name is empty.
func (wb *workbook) sheetPath(name string, index int) (string, error) {
	if name != "" {
		for _, s := range wb.sheets {
			if strings.EqualFold(s.name, name) {
				if rel, ok := wb.rels[s.relID]; ok {
					return normalizeRelPath(rel), nil
				}
			}
		}
		names := make([]string, len(wb.sheets))
		for i, s := range wb.sheets {
			names[i] = s.name
		}
		return "", errors.Wrapf(ErrSheetNotFound, "%q (available: %s)", name, strings.Join(names, ", "))
	}
	if index <= 0 {
		index = 1
	}
	for _, s := range wb.sheets {
		if s.sheetID == index {
			if rel, ok := wb.rels[s.relID]; ok {
				return normalizeRelPath(rel), nil
			}
		}
	}
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", index)), nil
}

// readXLSX returns the header row and the data rows of one worksheet.
// Rows are padded to the header width.
func readXLSX(p, sheetName string, sheetIndex int) ([]string, [][]string, error) {
	wb, err := openWorkbook(p)
	if err != nil {
		return nil, nil, err
	}
	target, err := wb.sheetPath(sheetName, sheetIndex)
	if err != nil {
		return nil, nil, errors.Wrap(err, filepath.Base(p))
	}
	rr := newSheetRowReader(wb.file(target), wb)
	header, ok := rr.Next()
	if !ok {
		return nil, nil, nil
	}
	var rows [][]string
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		}
		rows = append(rows, row[:len(header)])
	}
	return header, rows, nil
}

func parseWorkbook(data []byte) (sheets []workbookSheet, date1904 bool) {
	eachStart(data, func(se xml.StartElement) {
		if se.Name.Local == "workbookPr" {
			for _, a := range se.Attr {
				if a.Name.Local == "date1904" {
					date1904 = a.Value == "1" || strings.EqualFold(a.Value, "true")
				}
			}
			return
		}
		if se.Name.Local != "sheet" {
			return
		}
		var s workbookSheet
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.name = a.Value
			case "sheetId":
				s.sheetID = atoiSafe(a.Value)
			case "id":
				s.relID = a.Value
			}
		}
		sheets = append(sheets, s)
	})
	return sheets, date1904
}

// parseDateStyles flags the cellXfs entries whose number format renders a
// date: built-in ids 14-22 and 45-47, or a custom code with date or time
// tokens.
func parseDateStyles(data []byte) []bool {
	if len(data) == 0 {
		return nil
	}
	custom := map[int]bool{}
	var styles []bool
	inXfs := false
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return styles
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "numFmt":
				id, code := -1, ""
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "numFmtId":
						id = atoiSafe(a.Value)
					case "formatCode":
						code = a.Value
					}
				}
				custom[id] = isDateFormat(code)
			case "cellXfs":
				inXfs = true
			case "xf":
				if !inXfs {
					continue
				}
				id := 0
				for _, a := range se.Attr {
					if a.Name.Local == "numFmtId" {
						id = atoiSafe(a.Value)
					}
				}
				styles = append(styles, isDateFormatID(id, custom))
			}
		case xml.EndElement:
			if se.Name.Local == "cellXfs" {
				inXfs = false
			}
		}
	}
}

func isDateFormatID(id int, custom map[int]bool) bool {
	if isDate, ok := custom[id]; ok {
		return isDate
	}
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

// isDateFormat reports whether a custom number format code contains date or
// time tokens once quoted literals, escapes and bracketed sections such as
// colours or locales are removed.
func isDateFormat(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			inQuote = c != '"'
		case inBracket:
			inBracket = c != ']'
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\' || c == '_' || c == '*':
			i++
		default:
			b.WriteByte(c)
		}
	}
	plain := strings.ToLower(b.String())
	if strings.Contains(plain, "general") {
		return false
	}
	return strings.ContainsAny(plain, "dmyhs")
}

var (
	epoch1900 = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	epoch1904 = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
)

// serialToDate renders an Excel date serial as an ISO date, with a time part
// only when the serial has a fraction. ok is false when raw is not a number.
func serialToDate(raw string, date1904 bool) (string, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f < 0 {
		return "", false
	}
	epoch := epoch1900
	if date1904 {
		epoch = epoch1904
	}
	days := int(f)
	// Serials before 1900-03-01 sit before Excel's phantom 1900-02-29.
	if !date1904 && days > 0 && days < 60 {
		days++
	}
	secs := int((f-float64(days))*86400 + 0.5)
	t := epoch.AddDate(0, 0, days).Add(time.Duration(secs) * time.Second)
	if secs == 0 {
		return t.Format("2006-01-02"), true
	}
	return t.Format("2006-01-02T15:04:05"), true
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

// eachStart calls fn for every start element in data, stopping silently on
// malformed XML.
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

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inText = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inText {
				buf.Write(se)
			}
		}
	}
}

type sheetRowReader struct {
	dec *xml.Decoder
	wb  *workbook
}

func newSheetRowReader(data []byte, wb *workbook) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), wb: wb}
}

// Next returns the next <row>, placing each cell at the column given by its
// reference so sparse rows keep their alignment.
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
				row = nil
			case inRow && se.Name.Local == "c":
				var ref, typ string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						ref = a.Value
					case "t":
						typ = a.Value
					}
				}
				col := colIndexFromRef(ref)
				if col < 0 {
					col = len(row)
				}
				val := r.cellValue(typ, -1)
				if len(row) <= col {
					grown := make([]string, col+1)
					copy(grown, row)
					row = grown
				}
				row[col] = val
			}
		case xml.EndElement:
			if se.Name.Local == "row" && inRow {
				return row, true
			}
		}
	}
}

// cellValue consumes tokens up to </c> and returns the cell text, resolving
// shared string indices and rendering date-styled serials as ISO dates.
func (r *sheetRowReader) cellValue(typ string, style int) string {
	var val strings.Builder
	capture := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val.String()
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				capture = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "v", "t":
				capture = false
			case "c":
				if typ == "s" {
					idx := atoiSafe(val.String())
					if idx >= 0 && idx < len(r.wb.shared) {
						return r.wb.shared[idx]
					}
					return ""
				}
				if (typ == "" || typ == "n") && r.isDateStyle(style) {
					if d, ok := serialToDate(val.String(), r.wb.date1904); ok {
						return d
					}
				}
				return val.String()
			}
		case xml.CharData:
			if capture {
				val.Write(se)
			}
		}
	}
}

func (r *sheetRowReader) isDateStyle(style int) bool {
	return style >= 0 && style < len(r.wb.dateStyles) && r.wb.dateStyles[style]
}

// colIndexFromRef maps "C12" to 2. It returns -1 for an empty reference.
func colIndexFromRef(ref string) int {
	idx := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'A' && c <= 'Z':
			idx = idx*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			idx = idx*26 + int(c-'a'+1)
		default:
			return idx - 1
		}
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship targets to zip entry names.
// Targets may be absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
