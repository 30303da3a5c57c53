package document

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// buildDocx 用给定的正文XML片段生成一个最小的docx容器
func buildDocx(t *testing.T, body string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`,
	}
	for name, content := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func para(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

func TestDocxParserReader(t *testing.T) {
	parser := NewDocxParser()

	t.Run("JoinsNonEmptyParagraphs", func(t *testing.T) {
		data := buildDocx(t, para("First paragraph")+para("")+para("   ")+para("Second paragraph"))

		text, err := parser.ParseReader(bytes.NewReader(data), "sample.docx")
		require.NoError(t, err)
		assert.Equal(t, "First paragraph\nSecond paragraph", text)
	})

	t.Run("ConcatenatesRunsAndHyperlinks", func(t *testing.T) {
		body := `<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr>` +
			`<w:r><w:t>Hello</w:t></w:r>` +
			`<w:r><w:tab/><w:t>tabbed</w:t></w:r>` +
			`<w:hyperlink><w:r><w:t xml:space="preserve"> link</w:t></w:r></w:hyperlink>` +
			`<w:r><w:br/><w:t>next line</w:t></w:r>` +
			`<w:r><w:br w:type="page"/></w:r>` +
			`</w:p>`
		data := buildDocx(t, body)

		text, err := parser.ParseReader(bytes.NewReader(data), "runs.docx")
		require.NoError(t, err)
		assert.Equal(t, "Hello\ttabbed link\nnext line", text)
	})

	t.Run("KeepsParagraphWhitespace", func(t *testing.T) {
		data := buildDocx(t, para("  indented  "))

		text, err := parser.ParseReader(bytes.NewReader(data), "ws.docx")
		require.NoError(t, err)
		assert.Equal(t, "  indented  ", text)
	})

	t.Run("SkipsTableParagraphs", func(t *testing.T) {
		table := `<w:tbl><w:tr><w:tc>` + para("cell text") + `</w:tc></w:tr></w:tbl>`
		data := buildDocx(t, para("before")+table+para("after"))

		text, err := parser.ParseReader(bytes.NewReader(data), "table.docx")
		require.NoError(t, err)
		assert.Equal(t, "before\nafter", text)
	})

	t.Run("EmptyBody", func(t *testing.T) {
		data := buildDocx(t, `<w:sectPr/>`)

		text, err := parser.ParseReader(bytes.NewReader(data), "empty.docx")
		require.NoError(t, err)
		assert.Empty(t, text)
	})
}

func TestDocxParserMalformed(t *testing.T) {
	parser := NewDocxParser()

	tests := []struct {
		name string
		data []byte
	}{
		{"NotAZip", []byte("this is plain text, not a container")},
		{"MissingBody", func() []byte {
			var buf bytes.Buffer
			zw := zip.NewWriter(&buf)
			w, _ := zw.Create("word/styles.xml")
			_, _ = w.Write([]byte("<styles/>"))
			_ = zw.Close()
			return buf.Bytes()
		}()},
		{"BrokenXML", buildDocxRaw(t, `<w:document `+wordNS+`><w:body><w:p><w:r><w:t>oops`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseReader(bytes.NewReader(tt.data), tt.name+".docx")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedDocument)
		})
	}
}

const packageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="%s"/>` +
	`</Relationships>`

// buildDocxParts 按部件名写入任意内容
func buildDocxParts(t *testing.T, parts map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func documentXML(body string) string {
	return `<w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`
}

func TestDocxParserMainPart(t *testing.T) {
	parser := NewDocxParser()

	t.Run("RelocatedMainPart", func(t *testing.T) {
		data := buildDocxParts(t, map[string]string{
			"_rels/.rels":        fmt.Sprintf(packageRels, "word/document2.xml"),
			"word/document2.xml": documentXML(para("hello")),
		})

		text, err := parser.ParseReader(bytes.NewReader(data), "online.docx")
		require.NoError(t, err)
		assert.Equal(t, "hello", text)
	})

	t.Run("AbsoluteTarget", func(t *testing.T) {
		data := buildDocxParts(t, map[string]string{
			"_rels/.rels":        fmt.Sprintf(packageRels, "/word/document2.xml"),
			"word/document2.xml": documentXML(para("absolute")),
		})

		text, err := parser.ParseReader(bytes.NewReader(data), "absolute.docx")
		require.NoError(t, err)
		assert.Equal(t, "absolute", text)
	})

	t.Run("RelationshipPreferredOverDefault", func(t *testing.T) {
		data := buildDocxParts(t, map[string]string{
			"_rels/.rels":        fmt.Sprintf(packageRels, "word/document2.xml"),
			"word/document.xml":  documentXML(para("stale")),
			"word/document2.xml": documentXML(para("current")),
		})

		text, err := parser.ParseReader(bytes.NewReader(data), "both.docx")
		require.NoError(t, err)
		assert.Equal(t, "current", text)
	})

	t.Run("NoOfficeDocumentRelationship", func(t *testing.T) {
		rels := `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`
		data := buildDocxParts(t, map[string]string{
			"_rels/.rels":       rels,
			"word/document.xml": documentXML(para("fallback")),
		})

		text, err := parser.ParseReader(bytes.NewReader(data), "fallback.docx")
		require.NoError(t, err)
		assert.Equal(t, "fallback", text)
	})

	t.Run("TargetMissing", func(t *testing.T) {
		data := buildDocxParts(t, map[string]string{
			"_rels/.rels":       fmt.Sprintf(packageRels, "word/missing.xml"),
			"word/document.xml": documentXML(para("ignored")),
		})

		_, err := parser.ParseReader(bytes.NewReader(data), "missing.docx")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedDocument)
		assert.Contains(t, err.Error(), "word/missing.xml")
	})

	t.Run("BrokenRelationships", func(t *testing.T) {
		data := buildDocxParts(t, map[string]string{
			"_rels/.rels":       `<Relationships><Relationship`,
			"word/document.xml": documentXML(para("ignored")),
		})

		_, err := parser.ParseReader(bytes.NewReader(data), "rels.docx")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedDocument)
	})
}

// buildDocxRaw 直接写入document.xml原文，用于构造损坏的文档
func buildDocxRaw(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDocxParserIdempotent(t *testing.T) {
	data := buildDocx(t, para("alpha")+para("beta"))
	parser := NewDocxParser()

	first, err := parser.ParseReader(bytes.NewReader(data), "a.docx")
	require.NoError(t, err)
	second, err := parser.ParseReader(bytes.NewReader(data), "a.docx")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDocxParserFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.docx")
	require.NoError(t, os.WriteFile(path, buildDocx(t, para("from disk")), 0644))

	text, err := NewDocxParser().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "from disk", text)

	_, err = NewDocxParser().Parse(filepath.Join(dir, "missing.docx"))
	assert.Error(t, err)
}

func TestParserFactory(t *testing.T) {
	parser, err := ParserFactory(string(DOCX))
	require.NoError(t, err)
	assert.IsType(t, &DocxParser{}, parser)

	for _, ct := range []string{"application/pdf", "text/plain", ""} {
		_, err := ParserFactory(ct)
		assert.ErrorIs(t, err, ErrUnsupportedFileType, ct)
	}
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, DOCX, DetectContentType("report.DOCX"))
	assert.Equal(t, ContentType("application/pdf"), DetectContentType("/tmp/a.pdf"))
	assert.Equal(t, Unknown, DetectContentType("archive.tar.gz"))
	assert.True(t, IsSupported(string(DetectContentType("x.docx"))))
	assert.False(t, IsSupported("text/plain"))
	assert.True(t, strings.HasPrefix(string(DOCX), "application/vnd.openxmlformats"))
}
