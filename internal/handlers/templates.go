package handlers

import (
	"embed"
	"html/template"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/bobmcallan/folio-portal/internal/common"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer executes the portal's page templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates. Amounts are formatted in
// currency.
func NewRenderer(currency string) (*Renderer, error) {
	funcs := template.FuncMap{
		"money":       func(v float64) string { return common.FormatMoney(v, currency) },
		"signedMoney": func(v float64) string { return common.FormatSignedMoney(v, currency) },
		"optMoney":    func(v *float64) string { return common.FormatOptionalMoney(v, currency) },
		"pct":         common.FormatSignedPct,
		"qty":         common.FormatQuantity,
		"polyline":    polyline,
	}
	t, err := template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: t}, nil
}

// Render executes the named page into w.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// polyline maps values onto an SVG polyline's points inside a w by h box.
// The vertical scale spans values and every series in shared, so several
// lines drawn with the same shared set line up.
func polyline(w, h int, values []float64, shared ...[]float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range append([][]float64{values}, shared...) {
		for _, v := range s {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	step := 0.0
	if len(values) > 1 {
		step = float64(w) / float64(len(values)-1)
	}

	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(' ')
		}
		x := step * float64(i)
		y := float64(h) - (v-lo)/span*float64(h)
		b.WriteString(strconv.FormatFloat(x, 'f', 1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(y, 'f', 1, 64))
	}
	return b.String()
}
