package render

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"n8n-ingest/backend/pkg/models"
)

// Format is a named paper size.
type Format string

// paperSizes holds portrait width and height in inches.
var paperSizes = map[Format][2]float64{
	"Letter":  {8.5, 11},
	"Legal":   {8.5, 14},
	"Tabloid": {11, 17},
	"Ledger":  {17, 11},
	"A0":      {33.1, 46.8},
	"A1":      {23.4, 33.1},
	"A2":      {16.54, 23.4},
	"A3":      {11.7, 16.54},
	"A4":      {8.27, 11.7},
	"A5":      {5.83, 8.27},
	"A6":      {4.13, 5.83},
}

// Valid reports whether f is a known paper size.
func (f Format) Valid() bool {
	_, ok := paperSizes[f]
	return ok
}

// WaitUntil is the page-ready condition requested by the caller. Both the
// puppeteer spellings (networkidle0, networkidle2) and the playwright one
// (networkidle) are accepted.
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle0     WaitUntil = "networkidle0"
	WaitNetworkIdle2     WaitUntil = "networkidle2"
	WaitNetworkIdle      WaitUntil = "networkidle"
	WaitCommit           WaitUntil = "commit"
)

// Readiness is the condition the engine actually waits for.
type Readiness string

const (
	ReadyLoad             Readiness = "load"
	ReadyDOMContentLoaded Readiness = "domcontentloaded"
	ReadyNetworkIdle      Readiness = "networkidle"
	ReadyCommit           Readiness = "commit"
)

// Normalize collapses the network-idle spellings into ReadyNetworkIdle. The
// second result is false for unknown values.
func (w WaitUntil) Normalize() (Readiness, bool) {
	switch w {
	case WaitNetworkIdle0, WaitNetworkIdle2, WaitNetworkIdle:
		return ReadyNetworkIdle, true
	case WaitLoad:
		return ReadyLoad, true
	case WaitDOMContentLoaded:
		return ReadyDOMContentLoaded, true
	case WaitCommit:
		return ReadyCommit, true
	}
	return "", false
}

const (
	DefaultFileName = "document.pdf"
	DefaultMargin   = "10mm"
	MimeTypePDF     = "application/pdf"
)

// Options are the layout options of a render request.
type Options struct {
	Format          Format    `json:"format"`
	Landscape       bool      `json:"landscape"`
	PrintBackground bool      `json:"printBackground"`
	MarginTop       string    `json:"marginTop"`
	MarginRight     string    `json:"marginRight"`
	MarginBottom    string    `json:"marginBottom"`
	MarginLeft      string    `json:"marginLeft"`
	WaitUntil       WaitUntil `json:"waitUntil"`
	FileName        string    `json:"fileName"`
}

// DefaultOptions returns A4 portrait with backgrounds, 10mm margins and a
// network-idle wait.
func DefaultOptions() Options {
	return Options{
		Format:          "A4",
		Landscape:       false,
		PrintBackground: true,
		MarginTop:       DefaultMargin,
		MarginRight:     DefaultMargin,
		MarginBottom:    DefaultMargin,
		MarginLeft:      DefaultMargin,
		WaitUntil:       WaitNetworkIdle0,
		FileName:        DefaultFileName,
	}
}

// UnmarshalJSON fills absent fields with their defaults.
func (o *Options) UnmarshalJSON(b []byte) error {
	type plain Options
	p := plain(DefaultOptions())
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("%w: options: %v", models.ErrInvalidPayload, err)
	}
	*o = Options(p)
	return nil
}

// Validate checks enum values and margin syntax.
func (o *Options) Validate() error {
	if o.FileName == "" {
		o.FileName = DefaultFileName
	}
	if !o.Format.Valid() {
		return fmt.Errorf("%w: options.format %q is not a supported page size", models.ErrInvalidPayload, o.Format)
	}
	if _, ok := o.WaitUntil.Normalize(); !ok {
		return fmt.Errorf("%w: options.waitUntil %q is not supported", models.ErrInvalidPayload, o.WaitUntil)
	}
	for name, m := range map[string]string{
		"marginTop":    o.MarginTop,
		"marginRight":  o.MarginRight,
		"marginBottom": o.MarginBottom,
		"marginLeft":   o.MarginLeft,
	} {
		if _, err := LengthToInches(m); err != nil {
			return fmt.Errorf("%w: options.%s: %v", models.ErrInvalidPayload, name, err)
		}
	}
	return nil
}

// Margins are CSS-like length strings ("10mm", "0.5in", "20px", "2cm").
type Margins struct {
	Top, Right, Bottom, Left string
}

// PageSettings is what the engine receives: the caller's layout with the wait
// condition already normalized. Margins are passed through verbatim.
type PageSettings struct {
	Format          Format
	Landscape       bool
	PrintBackground bool
	Margins         Margins
	WaitUntil       Readiness
}

// PageSettings converts validated options into engine settings.
func (o Options) PageSettings() PageSettings {
	ready, _ := o.WaitUntil.Normalize()
	return PageSettings{
		Format:          o.Format,
		Landscape:       o.Landscape,
		PrintBackground: o.PrintBackground,
		Margins: Margins{
			Top:    o.MarginTop,
			Right:  o.MarginRight,
			Bottom: o.MarginBottom,
			Left:   o.MarginLeft,
		},
		WaitUntil: ready,
	}
}

// Request is the body of POST /render/pdf.
type Request struct {
	HTML    *string `json:"html"`
	Options Options `json:"options"`
}

// NewRequest returns a Request whose options hold the defaults, ready to be
// decoded into.
func NewRequest() Request {
	return Request{Options: DefaultOptions()}
}

// Validate checks that html is present and the options are acceptable.
func (r *Request) Validate() error {
	if r.HTML == nil {
		return fmt.Errorf("%w: html is required", models.ErrInvalidPayload)
	}
	return r.Options.Validate()
}

var pixelsPerUnit = map[string]float64{
	"px": 1,
	"in": 96,
	"cm": 37.8,
	"mm": 3.78,
}

// LengthToInches converts a length string to inches. A bare number is read
// as pixels; an empty string is zero.
func LengthToInches(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	unit := "px"
	num := s
	if len(s) > 2 {
		if _, ok := pixelsPerUnit[s[len(s)-2:]]; ok {
			unit = s[len(s)-2:]
			num = strings.TrimSpace(s[:len(s)-2])
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative length %q", s)
	}
	return v * pixelsPerUnit[unit] / 96, nil
}
