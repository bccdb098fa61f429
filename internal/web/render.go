// Package web serves the ProMED alert globe.
package web

import (
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/KaramelBytes/promedmap/internal/alerts"
	"github.com/KaramelBytes/promedmap/internal/filter"
)

// Default page text.
const (
	DefaultTitle  = "Mapping ProMED Alerts"
	DefaultHeader = "Mapping disease instances from ProMED alerts"
	DefaultHint   = "Hover over a point to view more information. You can also filter on countries, pathogen type, disease name, and affected species"
)

// DefaultIntro introduces ProMED above the map.
const DefaultIntro = `The <a href="https://promedmail.org/about-promed/">Program for Monitoring Emerging Diseases (ProMED)</a> is a program of the International Society for Infectious Diseases (ISID). ProMED was launched in 1994 as an Internet service to identify unusual health events related to emerging and re-emerging infectious diseases and toxins affecting humans, animals and plants. It is the largest publicly-available system conducting global reporting of infectious disease outbreaks.`

// PageOptions carries the static parts of the page.
type PageOptions struct {
	Title    string
	Header   string
	Intro    template.HTML
	Hint     string
	MapStyle string
	// Static hides the filter form, for pages written to disk.
	Static bool
}

// DefaultPageOptions returns the stock page text with the light map style.
func DefaultPageOptions() PageOptions {
	return PageOptions{
		Title:    DefaultTitle,
		Header:   DefaultHeader,
		Intro:    template.HTML(DefaultIntro),
		Hint:     DefaultHint,
		MapStyle: "light",
	}
}

// Page is the view model of one render.
type Page struct {
	PageOptions
	Filter   FilterView
	Points   []alerts.Record
	Rows     int
	Style    MapStyle
	Tooltip  Tooltip
	Rendered time.Time
}

// FilterView is the state of the filter form.
type FilterView struct {
	Enabled  bool
	Columns  []ColumnChoice
	Controls []ControlView
}

// ColumnChoice is one entry of the "Filter dataframe on" multi-select.
type ColumnChoice struct {
	Name     string
	Selected bool
}

// ControlView is a filter control ready for the template.
type ControlView struct {
	Column string
	Kind   string
	Label  string

	Options []Option

	Min, Max, Step string
	Lo, Hi         string

	MinDate, MaxDate string
	From, To         string

	Pattern string
}

// Option is one categorical choice.
type Option struct {
	Value    string
	Selected bool
}

// Tooltip is the hover box shown for a point.
type Tooltip struct {
	Background string
	Colour     string
}

// MapStyle colours the globe.
type MapStyle struct {
	Name       string
	Background string
	Land       [4]int
	Border     [4]int
}

var mapStyles = map[string]MapStyle{
	"light":     {Name: "light", Background: "#ffffff", Land: [4]int{238, 238, 238, 255}, Border: [4]int{190, 190, 190, 255}},
	"dark":      {Name: "dark", Background: "#111111", Land: [4]int{48, 48, 52, 255}, Border: [4]int{90, 90, 96, 255}},
	"road":      {Name: "road", Background: "#f4f1ea", Land: [4]int{250, 246, 232, 255}, Border: [4]int{200, 180, 150, 255}},
	"satellite": {Name: "satellite", Background: "#02060f", Land: [4]int{54, 84, 54, 255}, Border: [4]int{30, 50, 30, 255}},
}

func styleFor(name string) MapStyle {
	if s, ok := mapStyles[name]; ok {
		return s
	}
	return mapStyles["light"]
}

// Render filters ds with spec and returns the page to draw. Only rows with
// coordinates become points.
func Render(ds *alerts.Dataset, filterable []string, spec filter.Spec, opts PageOptions) (*Page, error) {
	if ds == nil {
		return nil, errors.New("render: nil dataset")
	}
	filtered, controls := filter.Build(ds.Table, filterable, spec)

	p := &Page{
		PageOptions: opts,
		Points:      ds.Points(filtered),
		Rows:        filtered.Len(),
		Style:       styleFor(opts.MapStyle),
		Tooltip:     Tooltip{Background: "steelblue", Colour: "white"},
		Rendered:    time.Now().UTC(),
	}
	p.Filter.Enabled = spec.Enabled
	selected := make(map[string]bool, len(spec.Columns))
	for _, c := range spec.Columns {
		selected[strings.ToLower(strings.TrimSpace(c))] = true
	}
	for _, c := range filterable {
		p.Filter.Columns = append(p.Filter.Columns, ColumnChoice{Name: c, Selected: selected[strings.ToLower(strings.TrimSpace(c))]})
	}
	for _, c := range controls {
		p.Filter.Controls = append(p.Filter.Controls, controlView(c))
	}
	return p, nil
}

func controlView(c filter.Control) ControlView {
	v := ControlView{Column: c.Column, Kind: c.Kind.String(), Label: c.Label}
	switch sel := c.Selection.(type) {
	case filter.CategorySelection:
		chosen := make(map[string]bool, len(sel.Values))
		for _, s := range sel.Values {
			chosen[s] = true
		}
		for _, o := range c.Options {
			v.Options = append(v.Options, Option{Value: o, Selected: chosen[o]})
		}
	case filter.RangeSelection:
		v.Min, v.Max, v.Step = num(c.Min), num(c.Max), num(c.Step)
		v.Lo, v.Hi = num(sel.Min), num(sel.Max)
	case filter.DateSelection:
		v.MinDate, v.MaxDate = day(c.MinDate), day(c.MaxDate)
		v.From, v.To = day(sel.From), day(sel.To)
	case filter.PatternSelection:
		v.Pattern = sel.Pattern
	}
	return v
}

func num(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(filter.DateLayout)
}

// WritePage executes the page template into w.
func WritePage(w io.Writer, p *Page) error {
	return errors.Wrap(pageTemplate.ExecuteTemplate(w, "index.html", p), "render page")
}
