// Package cobertura reads and writes the Cobertura XML coverage format.
package cobertura

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
)

// Codec reads and writes Cobertura reports rooted at a single source
// directory, used both to resolve <class filename> attributes against
// <sources> entries on read and to relativize paths on write.
type Codec struct {
	Root string
}

// NewCodec returns a Codec rooted at root.
func NewCodec(root string) *Codec { return &Codec{Root: root} }

type xmlReport struct {
	XMLName  xml.Name    `xml:"coverage"`
	Sources  []string    `xml:"sources>source"`
	Packages []xmlPackage `xml:"packages>package"`
}

type xmlPackage struct {
	Classes []xmlClass `xml:"classes>class"`
}

type xmlClass struct {
	Filename string   `xml:"filename,attr"`
	Lines    []xmlLine `xml:"lines>line"`
}

type xmlLine struct {
	Number int `xml:"number,attr"`
	Hits   int `xml:"hits,attr"`
}

// Read parses a Cobertura XML document into a PackageCoverage.
//
// Each <class filename> is resolved against the root directly, then
// against each <sources><source> entry in declared order; the first
// candidate that exists as a regular file wins. If none resolve, the
// class's own filename attribute is kept unchanged, matching the
// permissive behavior of the format this was ported from.
func (c *Codec) Read(r io.Reader) (*coverage.PackageCoverage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &coverage.IoError{Detail: "reading cobertura report", Err: err}
	}

	var report xmlReport
	if err := xml.Unmarshal(data, &report); err != nil {
		return nil, &coverage.FormatError{Detail: fmt.Sprintf("invalid cobertura xml: %v", err)}
	}

	var sourceDirs []string
	for _, s := range report.Sources {
		if pathIsValid(s) {
			sourceDirs = append(sourceDirs, strings.TrimSpace(s))
		}
	}

	pkg := &coverage.PackageCoverage{}
	for _, p := range report.Packages {
		for _, class := range p.Classes {
			path := c.findFileInDirs(sourceDirs, class.Filename)

			lines := make([]coverage.LineCoverage, 0, len(class.Lines))
			for _, l := range class.Lines {
				if l.Number == 0 {
					continue
				}
				lines = append(lines, coverage.NewLineCoverage(l.Number-1, l.Hits))
			}

			pkg.Files = append(pkg.Files, coverage.FileCoverage{
				Path:  path,
				Lines: lines,
			})
		}
	}

	return pkg, nil
}

func (c *Codec) findFileInDirs(dirs []string, filename string) string {
	direct := filename
	if !filepath.IsAbs(direct) {
		direct = filepath.Join(c.Root, filename)
	}
	if info, err := os.Stat(direct); err == nil && !info.IsDir() {
		return direct
	}

	for _, dir := range dirs {
		var candidate string
		if filepath.IsAbs(dir) {
			candidate = filepath.Join(dir, filename)
		} else {
			candidate = filepath.Join(c.Root, dir, filename)
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}

	return filename
}

// pathIsValid reports whether a <sources><source> text node is usable as a
// filesystem path: non-empty once trimmed, and free of control characters.
func pathIsValid(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

const doctype = `<!DOCTYPE coverage SYSTEM 'http://cobertura.sourceforge.net/xml/coverage-03.dtd'>` + "\n"

// Write emits data as a Cobertura XML document.
func (c *Codec) Write(w io.Writer, data *coverage.PackageCoverage) error {
	var b strings.Builder

	b.WriteString(xml.Header)
	b.WriteString(doctype)

	lineRate := rate(data.LineExecuted(), data.LineTotal())
	ts := time.Now().Unix()

	fmt.Fprintf(&b, `<coverage line-rate="%s" branch-rate="0" version="1.9" timestamp="%d">`+"\n",
		lineRate, ts)

	b.WriteString("<sources>\n")
	fmt.Fprintf(&b, "<source>%s</source>\n", xmlEscape(c.Root))
	b.WriteString("</sources>\n")

	b.WriteString("<packages>\n")
	fmt.Fprintf(&b, `<package name="%s" line-rate="%s" branch-rate="1.0" complexity="1.0">`+"\n",
		xmlEscape(data.Name), lineRate)
	b.WriteString("<classes>\n")

	for i := range data.Files {
		c.writeClass(&b, &data.Files[i])
	}

	b.WriteString("</classes>\n")
	b.WriteString("</package>\n")
	b.WriteString("</packages>\n")
	b.WriteString("</coverage>\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return &coverage.IoError{Detail: "writing cobertura report", Err: err}
	}
	return nil
}

func (c *Codec) writeClass(b *strings.Builder, file *coverage.FileCoverage) {
	name := filepath.Base(file.Path)
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")

	path := file.Path
	if rel, err := filepath.Rel(c.Root, file.Path); err == nil {
		path = rel
	}

	classRate := rate(file.LineExecuted(), file.LineTotal())

	fmt.Fprintf(b, `<class name="%s" filename="%s" line-rate="%s">`+"\n",
		xmlEscape(name), xmlEscape(path), classRate)
	b.WriteString("<lines>\n")

	for _, l := range file.Lines {
		count := 0
		if l.Count != nil {
			count = *l.Count
		}
		fmt.Fprintf(b, `<line number="%d" hits="%d"/>`+"\n", l.LineNumber+1, count)
	}

	b.WriteString("</lines>\n")
	b.WriteString("</class>\n")
}

func rate(executed, total int) string {
	if total == 0 {
		return "0.000"
	}
	return strconv.FormatFloat(float64(executed)/float64(total), 'f', 3, 64)
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
