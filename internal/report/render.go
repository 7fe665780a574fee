package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"

	"github.com/FranksOps/patentscout/internal/storage"
)

// WriteJSON writes the report to the provided writer in indented JSON.
func WriteJSON(w io.Writer, r *storage.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

const textTmpl = `Patent Search Report
--------------------
Query:               {{.Summary.Query}}
Total Patents Found: {{.Summary.Total}}

Top Assignees:
{{- range .Summary.TopAssignees}}
  - {{.Name}} ({{.Count}})
{{- else}}
  None
{{- end}}

Top Inventors:
{{- range .Summary.TopInventors}}
  - {{.Name}} ({{.Count}})
{{- else}}
  None
{{- end}}
{{- if .Results}}

Patent Details
{{- range $i, $p := .Results}}

{{inc $i}}. {{$p.Title}}
   Summary:          {{$p.Summary}}
   Publication Date: {{$p.PublicationDate}}
   Inventor:         {{$p.Inventor}}
   Assignee:         {{$p.Assignee}}
   Patent Link:      {{$p.PatentLink}}
{{- if $p.PDFLink}}
   PDF Link:         {{$p.PDFLink}}
{{- end}}
{{- end}}
{{- end}}
`

var funcs = map[string]any{
	"inc": func(i int) int { return i + 1 },
}

var textReport = template.Must(template.New("textReport").Funcs(funcs).Parse(textTmpl))

// WriteText writes a human-readable report to the provided writer.
func WriteText(w io.Writer, r *storage.Report) error {
	if err := textReport.Execute(w, r); err != nil {
		return fmt.Errorf("rendering text report: %w", err)
	}
	return nil
}

// Page is the data behind the HTML view.
type Page struct {
	// Form renders the search form; the CLI export leaves it off.
	Form   bool
	Query  string
	Num    int
	MinNum int
	MaxNum int
	Error  string
	Report *storage.Report
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Patent Search{{if .Query}}: {{.Query}}{{end}}</title>
<style>
  body { font-family: sans-serif; margin: 40px auto; max-width: 860px; color: #333; }
  h1 { text-align: center; color: #4B8BBE; border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  form { margin-bottom: 20px; }
  input[type=text] { width: 60%; padding: 6px; }
  input[type=number] { width: 60px; padding: 6px; }
  .error { padding: 10px; background: #fdecea; color: #b71c1c; border-radius: 5px; }
  .success { padding: 10px; background: #e8f5e9; color: #1b5e20; border-radius: 5px; }
  .patent { border-bottom: 1px solid #ddd; padding: 10px 0; }
  .patent p { margin: 4px 0; }
</style>
</head>
<body>
  <h1>Patent Search</h1>
{{- if .Form}}
  <form action="/search" method="get">
    <input type="text" name="q" value="{{.Query}}" placeholder="E.g. AI for manufacturing in the domain of shoes">
    <label>Patents ({{.MinNum}}-{{.MaxNum}}): <input type="number" name="num" min="{{.MinNum}}" max="{{.MaxNum}}" value="{{.Num}}"></label>
    <button type="submit">Search Patents</button>
  </form>
{{- end}}
{{- if .Error}}
  <div class="error">{{.Error}}</div>
{{- end}}
{{- with .Report}}
  <div class="success">Found {{.Summary.Total}} patents for your query!</div>
  <h2>Summary</h2>
  <p><strong>Query:</strong> {{.Summary.Query}}</p>
  <p><strong>Total Patents Found:</strong> {{.Summary.Total}}</p>
  <p><strong>Top Assignees:</strong></p>
  <ul>
  {{- range .Summary.TopAssignees}}
    <li>{{.Name}} ({{.Count}})</li>
  {{- end}}
  </ul>
  <p><strong>Top Inventors:</strong></p>
  <ul>
  {{- range .Summary.TopInventors}}
    <li>{{.Name}} ({{.Count}})</li>
  {{- end}}
  </ul>
  <h2>Patent Details</h2>
  {{- range $i, $p := .Results}}
  <div class="patent">
    <p><strong>{{inc $i}}. {{$p.Title}}</strong></p>
    <p>Summary: {{$p.Summary}}</p>
    <p>Publication Date: {{$p.PublicationDate}}</p>
    <p>Inventor: {{$p.Inventor}}</p>
    <p>Assignee: {{$p.Assignee}}</p>
    {{- if $p.PatentLink}}
    <p><a href="{{$p.PatentLink}}">Patent Link</a></p>
    {{- end}}
    {{- if $p.PDFLink}}
    <p><a href="{{$p.PDFLink}}">PDF Link</a></p>
    {{- end}}
  </div>
  {{- end}}
  {{- if $.Form}}
  <p><a href="/reports/{{.ID}}.docx?q={{.Summary.Query}}&num={{$.Num}}">Download Patent Report (Word)</a></p>
  {{- end}}
{{- end}}
</body>
</html>
`

var htmlReport = htmltemplate.Must(htmltemplate.New("htmlReport").Funcs(funcs).Parse(htmlTmpl))

// WriteHTML renders p as a standalone HTML page.
func WriteHTML(w io.Writer, p Page) error {
	if err := htmlReport.Execute(w, p); err != nil {
		return fmt.Errorf("rendering html report: %w", err)
	}
	return nil
}
