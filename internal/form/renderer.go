package form

import (
	"fmt"
	"html"
	"html/template"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"paysync/internal/payment"
)

const page = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Payment</title>
    <style>
        body { font-family: sans-serif; background: #f2f2f2; margin: 0; padding: 20px; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
        .box { background: #fff; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); padding: 40px; text-align: center; max-width: 400px; width: 100%; }
        .error { color: #b00020; margin-bottom: 20px; }
    </style>
</head>
<body>
    <div class="box">
        {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
        <form id="payment-form" method="POST" action="{{.Action}}">
            {{range .Fields}}<input type="hidden" name="{{.Name}}" value="{{.Value}}">
            {{end}}<button type="submit">Continue</button>
        </form>
    </div>
    {{if .AutoSubmit}}<script>document.getElementById("payment-form").submit();</script>{{end}}
</body>
</html>`

type field struct {
	Name  string
	Value string
}

type view struct {
	Action     string
	Fields     []field
	Error      string
	AutoSubmit bool
}

// Renderer writes checkout forms as HTML pages.
type Renderer struct {
	tmpl   *template.Template
	policy *bluemonday.Policy
}

func NewRenderer() *Renderer {
	return &Renderer{
		tmpl:   template.Must(template.New("payment-form").Parse(page)),
		policy: bluemonday.StrictPolicy(),
	}
}

// Render writes the form page. Gateway-supplied error_* values are stripped
// of markup. With autoSubmit the page posts itself as soon as it loads.
func (r *Renderer) Render(w io.Writer, f *payment.CheckoutForm, autoSubmit bool) error {
	if f == nil {
		return fmt.Errorf("form: nothing to render")
	}
	v := view{Action: f.Action, AutoSubmit: autoSubmit}
	for _, name := range f.FieldNames() {
		value := f.Fields[name]
		if strings.HasPrefix(name, "error_") {
			value = r.sanitize(value)
		}
		v.Fields = append(v.Fields, field{Name: name, Value: value})
	}
	v.Error = r.sanitize(f.Fields["error_message"])
	return r.tmpl.Execute(w, v)
}

func (r *Renderer) sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(r.policy.Sanitize(s)))
}
