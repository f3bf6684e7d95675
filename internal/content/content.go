// Package content loads the reading material shown in the READING
// modality. A document is an ordered list of units; unit numbers are
// 1-based.
package content

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed sample/*.md
var sampleFS embed.FS

// ErrEmpty is returned when a source yields no units.
var ErrEmpty = errors.New("no reading units found")

// Unit is one page of reading material.
type Unit struct {
	Title string
	Body  string
}

// Document is the ordered reading material.
type Document struct {
	Units []Unit
}

// Len returns the unit count.
func (d *Document) Len() int {
	return len(d.Units)
}

// Unit returns the 1-based unit n.
func (d *Document) Unit(n int) (Unit, bool) {
	if n < 1 || n > len(d.Units) {
		return Unit{}, false
	}
	return d.Units[n-1], true
}

// Load reads a document from path. A directory contributes one unit per
// .md or .txt file in name order; a single file is split on lines holding
// only "---". An empty path loads the built-in sample.
func Load(path string) (*Document, error) {
	if path == "" {
		return loadFS(sampleFS, "sample")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	if info.IsDir() {
		return loadFS(os.DirFS(path), ".")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	units := split(string(data))
	if len(units) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return &Document{Units: units}, nil
}

func loadFS(fsys fs.FS, dir string) (*Document, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".md", ".txt":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	doc := &Document{}
	for _, name := range names {
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, name)))
		if err != nil {
			return nil, fmt.Errorf("load content: %w", err)
		}
		u := parseUnit(string(data))
		if u.Title == "" {
			u.Title = strings.TrimSuffix(name, filepath.Ext(name))
		}
		doc.Units = append(doc.Units, u)
	}
	if len(doc.Units) == 0 {
		return nil, ErrEmpty
	}
	return doc, nil
}

// split breaks a single file into units at separator lines.
func split(text string) []Unit {
	var (
		units []Unit
		cur   strings.Builder
	)
	flush := func() {
		if strings.TrimSpace(cur.String()) != "" {
			units = append(units, parseUnit(cur.String()))
		}
		cur.Reset()
	}
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush()
	for i := range units {
		if units[i].Title == "" {
			units[i].Title = fmt.Sprintf("Page %d", i+1)
		}
	}
	return units
}

// parseUnit takes a leading markdown heading as the title.
func parseUnit(text string) Unit {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")
	if title, ok := strings.CutPrefix(first, "# "); ok {
		return Unit{Title: strings.TrimSpace(title), Body: strings.TrimSpace(rest)}
	}
	return Unit{Body: text}
}
