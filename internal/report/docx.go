package report

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"text/template"

	"github.com/FranksOps/patentscout/internal/storage"
)

const (
	// DocxContentType is the MIME type of WriteDocx output.
	DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	// DocxFilename is the download name used by the web UI.
	DocxFilename = "patent_report.docx"
)

type docxParagraph struct {
	Style string
	Text  string
}

// docxParagraphs lays out the report as Word paragraphs: heading, query and
// total, the two rankings, then one block per patent. ListNumber paragraphs
// are numbered by Word, so titles carry no prefix.
func docxParagraphs(r *storage.Report) []docxParagraph {
	ps := []docxParagraph{
		{Style: "Heading1", Text: "Patent Search Report"},
		{Text: "Query: " + r.Summary.Query},
		{Text: "Total Patents Found: " + strconv.Itoa(r.Summary.Total)},
		{Style: "Heading2", Text: "Top Assignees"},
	}
	for _, nc := range r.Summary.TopAssignees {
		ps = append(ps, docxParagraph{Style: "ListBullet", Text: fmt.Sprintf("%s (%d)", nc.Name, nc.Count)})
	}

	ps = append(ps, docxParagraph{Style: "Heading2", Text: "Top Inventors"})
	for _, nc := range r.Summary.TopInventors {
		ps = append(ps, docxParagraph{Style: "ListBullet", Text: fmt.Sprintf("%s (%d)", nc.Name, nc.Count)})
	}

	ps = append(ps, docxParagraph{Style: "Heading2", Text: "Patent Details"})
	for _, p := range r.Results {
		ps = append(ps,
			docxParagraph{Style: "ListNumber", Text: p.Title},
			docxParagraph{Text: "Summary: " + p.Summary},
			docxParagraph{Text: "Publication Date: " + p.PublicationDate},
			docxParagraph{Text: "Inventor: " + p.Inventor},
			docxParagraph{Text: "Assignee: " + p.Assignee},
			docxParagraph{Text: "Patent Link: " + p.PatentLink},
			docxParagraph{Text: "PDF Link: " + p.PDFLink},
			docxParagraph{},
		)
	}
	return ps
}

func xmlEscape(s string) (string, error) {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const documentTmpl = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
{{- range .}}
<w:p>{{if .Style}}<w:pPr><w:pStyle w:val="{{.Style}}"/></w:pPr>{{end}}{{if .Text}}<w:r><w:t xml:space="preserve">{{xml .Text}}</w:t></w:r>{{end}}</w:p>
{{- end}}
<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>
</w:body>
</w:document>
`

var documentXML = template.Must(template.New("document").Funcs(template.FuncMap{"xml": xmlEscape}).Parse(documentTmpl))

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
<Override PartName="/word/numbering.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"/>
</Types>
`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>
`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering" Target="numbering.xml"/>
</Relationships>
`

const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:pPr><w:spacing w:after="120"/></w:pPr><w:rPr><w:sz w:val="22"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:color w:val="2F5496"/><w:sz w:val="32"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:spacing w:before="200" w:after="80"/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:color w:val="2F5496"/><w:sz w:val="26"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="ListBullet"><w:name w:val="List Bullet"/><w:basedOn w:val="Normal"/><w:pPr><w:numPr><w:numId w:val="1"/></w:numPr><w:ind w:left="360" w:hanging="360"/></w:pPr></w:style>
<w:style w:type="paragraph" w:styleId="ListNumber"><w:name w:val="List Number"/><w:basedOn w:val="Normal"/><w:pPr><w:keepNext/><w:numPr><w:numId w:val="2"/></w:numPr><w:ind w:left="360" w:hanging="360"/></w:pPr><w:rPr><w:b/></w:rPr></w:style>
</w:styles>
`

// numberingXML backs the List Bullet (numId 1) and List Number (numId 2)
// styles.
const numberingXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:numbering xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:abstractNum w:abstractNumId="0"><w:multiLevelType w:val="singleLevel"/><w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="bullet"/><w:lvlText w:val="•"/><w:lvlJc w:val="left"/><w:pPr><w:ind w:left="360" w:hanging="360"/></w:pPr></w:lvl></w:abstractNum>
<w:abstractNum w:abstractNumId="1"><w:multiLevelType w:val="singleLevel"/><w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="decimal"/><w:lvlText w:val="%1."/><w:lvlJc w:val="left"/><w:pPr><w:ind w:left="360" w:hanging="360"/></w:pPr></w:lvl></w:abstractNum>
<w:num w:numId="1"><w:abstractNumId w:val="0"/></w:num>
<w:num w:numId="2"><w:abstractNumId w:val="1"/></w:num>
</w:numbering>
`

// WriteDocx writes the report as a Word (.docx) document.
func WriteDocx(w io.Writer, r *storage.Report) error {
	zw := zip.NewWriter(w)

	static := []struct{ name, body string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{"word/numbering.xml", numberingXML},
	}
	for _, part := range static {
		f, err := zw.Create(part.name)
		if err != nil {
			return fmt.Errorf("creating %s: %w", part.name, err)
		}
		if _, err := io.WriteString(f, part.body); err != nil {
			return fmt.Errorf("writing %s: %w", part.name, err)
		}
	}

	f, err := zw.Create("word/document.xml")
	if err != nil {
		return fmt.Errorf("creating word/document.xml: %w", err)
	}
	if err := documentXML.Execute(f, docxParagraphs(r)); err != nil {
		return fmt.Errorf("rendering word/document.xml: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing docx: %w", err)
	}
	return nil
}
