package textextract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/madelhuette/carvitra-sub001/constants"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

var disableConfigDir sync.Once

// ReadMeta reads container metadata with pdfcpu in relaxed mode. Corrupt or
// unreadable input yields the zero DocumentMeta and an error.
func ReadMeta(data []byte) (meta entity.DocumentMeta, err error) {
	if len(data) == 0 {
		return entity.DocumentMeta{}, fmt.Errorf("empty document")
	}
	disableConfigDir.Do(api.DisableConfigDir)

	defer func() {
		if r := recover(); r != nil {
			meta, err = entity.DocumentMeta{}, fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadAndValidate(bytes.NewReader(data), conf)
	if err != nil {
		return entity.DocumentMeta{}, fmt.Errorf("read pdf: %w", err)
	}

	meta = entity.DocumentMeta{
		PageCount: ctx.XRefTable.PageCount,
		Title:     strings.TrimSpace(ctx.XRefTable.Title),
		Author:    strings.TrimSpace(ctx.XRefTable.Author),
	}
	// Configuration declares a CreationDate too, so the XRefTable is named explicitly.
	if t, ok := ParsePDFDate(ctx.XRefTable.CreationDate); ok {
		meta.CreatedAt = &t
	}
	if t, ok := ParsePDFDate(ctx.XRefTable.ModDate); ok {
		meta.ModifiedAt = &t
	}
	return meta, nil
}

var rePDFDate = regexp.MustCompile(`^(?:D:)?(\d{4})(\d{2})?(\d{2})?(\d{2})?(\d{2})?(\d{2})?(Z|[+-]\d{2}'?\d{2}'?)?`)

// ParsePDFDate parses a PDF date string such as "D:20220315120000+01'00'".
func ParsePDFDate(s string) (time.Time, bool) {
	m := rePDFDate.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	num := func(i, def int) int {
		if m[i] == "" {
			return def
		}
		n, _ := strconv.Atoi(m[i])
		return n
	}
	loc := time.UTC
	if tz := m[7]; tz != "" && tz != "Z" {
		digits := strings.ReplaceAll(tz[1:], "'", "")
		h, _ := strconv.Atoi(digits[:2])
		mm, _ := strconv.Atoi(digits[2:])
		offset := h*3600 + mm*60
		if tz[0] == '-' {
			offset = -offset
		}
		loc = time.FixedZone("", offset)
	}
	month := num(2, 1)
	day := num(3, 1)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(num(1, 0), time.Month(month), day, num(4, 0), num(5, 0), num(6, 0), 0, loc).UTC(), true
}

var (
	// literal string operands of text-showing operators in uncompressed content streams
	reShowText = regexp.MustCompile(`\(((?:[^()\\]|\\.){2,})\)\s*(?:Tj|'|")`)
	reTJArray  = regexp.MustCompile(`\[((?:[^\[\]\\]|\\.)*)\]\s*TJ`)
	reTJPart   = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)
)

// minimum printable run kept by the raw scan
const minRun = 4

// ScanText recovers text from the first limit bytes of a PDF. Literal text
// operands are preferred; otherwise printable runs are collected. The result is
// approximate.
func ScanText(data []byte, limit int) string {
	if limit > 0 && len(data) > limit {
		data = data[:limit]
	}
	if len(data) == 0 {
		return ""
	}

	var parts []string
	for _, m := range reShowText.FindAllSubmatch(data, -1) {
		parts = append(parts, unescapePDFString(m[1]))
	}
	for _, m := range reTJArray.FindAllSubmatch(data, -1) {
		var b strings.Builder
		for _, p := range reTJPart.FindAllSubmatch(m[1], -1) {
			b.WriteString(unescapePDFString(p[1]))
		}
		if b.Len() > 0 {
			parts = append(parts, b.String())
		}
	}
	if len(parts) > 0 {
		return Normalize(strings.Join(parts, "\n"))
	}
	return Normalize(strings.Join(printableRuns(data), "\n"))
}

func printableRuns(data []byte) []string {
	var runs []string
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= minRun {
			if r := string(data[start:end]); plausibleRun(r) {
				runs = append(runs, strings.TrimSpace(r))
			}
		}
		start = -1
	}
	for i, c := range data {
		if c >= 0x20 && c < 0x7f {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(data))
	return runs
}

var pdfSyntax = []string{"obj", "endobj", "stream", "xref", "trailer", "/Type", "/Filter", "/Length", "<<", ">>"}

func plausibleRun(r string) bool {
	letters := 0
	for _, c := range r {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			letters++
		}
	}
	if letters < 2 || strings.HasPrefix(strings.TrimSpace(r), "%") {
		return false
	}
	for _, s := range pdfSyntax {
		if strings.Contains(r, s) {
			return false
		}
	}
	return true
}

// unescapePDFString decodes the escapes of a PDF literal string. Octal
// escapes are read as Latin-1, which covers WinAnsi umlauts.
func unescapePDFString(b []byte) string {
	var out strings.Builder
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c != '\\' || i+1 >= len(b) {
			out.WriteRune(rune(c))
			continue
		}
		i++
		switch c = b[i]; {
		case c == 'n':
			out.WriteByte('\n')
		case c == 'r':
			out.WriteByte('\r')
		case c == 't':
			out.WriteByte('\t')
		case c >= '0' && c <= '7':
			n := 0
			j := i
			for ; j < len(b) && j < i+3 && b[j] >= '0' && b[j] <= '7'; j++ {
				n = n*8 + int(b[j]-'0')
			}
			out.WriteRune(rune(n & 0xff))
			i = j - 1
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// pdfToText runs the poppler binary on a temporary copy of data.
func (e *Extractor) pdfToText(ctx context.Context, data []byte) (string, error) {
	f, err := os.CreateTemp("", "offer-*.pdf")
	if err != nil {
		return "", err
	}
	defer func(path string) {
		if err := os.Remove(path); err != nil {
			e.logger.Warn("textextract.tmp_remove_failed", "path", path, "error", err)
		}
	}(f.Name())
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, "-layout", "-enc", "UTF-8", "-eol", "unix", f.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}

// fallback never fails: it returns whatever local extraction recovers.
func (e *Extractor) fallback(ctx context.Context, doc entity.Document) entity.ExtractedText {
	out := entity.ExtractedText{Method: constants.MethodNone, Meta: doc.Meta}
	if len(doc.Data) == 0 {
		return out
	}

	meta, err := ReadMeta(doc.Data)
	if err != nil {
		e.logger.Warn("textextract.fallback.meta_failed", "error", err)
	} else {
		out.Meta = mergeMeta(doc.Meta, meta)
	}
	out.PageCount = out.Meta.PageCount

	if e.cfg.Pdftotext != "" {
		text, err := e.pdfToText(ctx, doc.Data)
		if err == nil && strings.TrimSpace(text) != "" {
			out.Text = Normalize(text)
			out.Method = constants.MethodPdftotext
			if out.PageCount == 0 {
				out.PageCount = strings.Count(strings.TrimRight(text, "\n"), "\f")
			}
			return out
		}
		if err != nil {
			e.logger.Warn("textextract.fallback.pdftotext_failed", "error", err)
		}
	}

	if text := ScanText(doc.Data, e.cfg.ScanBytes); text != "" {
		out.Text = text
		out.Method = constants.MethodByteScan
		out.LowConfidence = true
	}
	return out
}

// mergeMeta prefers values read from the container over caller-supplied ones.
func mergeMeta(given, read entity.DocumentMeta) entity.DocumentMeta {
	out := given
	if read.PageCount > 0 {
		out.PageCount = read.PageCount
	}
	if read.Title != "" {
		out.Title = read.Title
	}
	if read.Author != "" {
		out.Author = read.Author
	}
	if read.CreatedAt != nil {
		out.CreatedAt = read.CreatedAt
	}
	if read.ModifiedAt != nil {
		out.ModifiedAt = read.ModifiedAt
	}
	return out
}
