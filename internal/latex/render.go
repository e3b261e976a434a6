package latex

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/timebill/internal/billing"
)

//go:embed templates/invoice.tex.tmpl
var templatesFS embed.FS

var escaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`{`, `\{`,
	`}`, `\}`,
	`$`, `\$`,
	`&`, `\&`,
	`%`, `\%`,
	`#`, `\#`,
	`^`, `\^{}`,
	`_`, `\_`,
	`~`, `\textasciitilde{}`,
)

// Escape makes text safe to place in a LaTeX document. Every special
// character is replaced in a single pass.
func Escape(s string) string { return escaper.Replace(s) }

var funcs = template.FuncMap{
	"esc":      Escape,
	"money":    func(d decimal.Decimal) string { return d.StringFixed(2) },
	"percent":  func(d decimal.Decimal) string { return d.Mul(decimal.NewFromInt(100)).String() },
	"longDate": func(t time.Time) string { return t.Format("January 02, 2006") },
	"isoDate":  func(t time.Time) string { return t.Format("2006-01-02") },
}

// Renderer turns an invoice into LaTeX source. Templates use << >> as
// delimiters so LaTeX braces need no quoting.
type Renderer struct {
	tmpl *template.Template
}

const templateName = "invoice.tex.tmpl"

// NewRenderer parses the template at path, or the built-in template when
// path is empty.
func NewRenderer(path string) (*Renderer, error) {
	t := template.New(templateName).Delims("<<", ">>").Funcs(funcs)
	var err error
	if path == "" {
		t, err = t.ParseFS(templatesFS, "templates/"+templateName)
	} else {
		var src []byte
		if src, err = os.ReadFile(path); err == nil {
			t, err = t.Parse(string(src))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("parse latex template: %w", err)
	}
	return &Renderer{tmpl: t}, nil
}

// Render produces the LaTeX document for inv.
func (r *Renderer) Render(inv billing.Invoice) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, inv); err != nil {
		return "", fmt.Errorf("render invoice %s: %w", inv.Number, err)
	}
	return buf.String(), nil
}
