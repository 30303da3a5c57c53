package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

const (
	// docxBodyPart 包关系中缺少主文档关系时使用的默认位置
	docxBodyPart      = "word/document.xml"
	// docxPackageRels 包级关系部件
	docxPackageRels   = "_rels/.rels"
	// officeDocumentRel 主文档关系类型的后缀
	officeDocumentRel = "/officeDocument"
)

// packageRelationships _rels/.rels 的结构
type packageRelationships struct {
	Relationships []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// DocxParser Word(.docx)文档解析器
type DocxParser struct{}

// NewDocxParser 创建一个新的DOCX解析器
func NewDocxParser() Parser {
	return &DocxParser{}
}

// Parse 解析DOCX文件并提取其文本内容
func (p *DocxParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open docx file: %v", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader 从Reader解析DOCX内容
// 非空段落按原顺序以换行符连接
func (p *DocxParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read docx content: %v", err)
	}

	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedDocument, filename, err)
	}

	parts := make(map[string]*zip.File, len(archive.File))
	for _, f := range archive.File {
		parts[f.Name] = f
	}

	bodyPart, err := mainDocumentPart(parts)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedDocument, filename, err)
	}
	body, ok := parts[bodyPart]
	if !ok {
		return "", fmt.Errorf("%w: %s: missing %s", ErrMalformedDocument, filename, bodyPart)
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedDocument, filename, err)
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(rc)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedDocument, filename, err)
	}

	kept := make([]string, 0, len(paragraphs))
	for _, para := range paragraphs {
		if strings.TrimSpace(para) == "" {
			continue
		}
		kept = append(kept, para)
	}

	return strings.Join(kept, "\n"), nil
}

// mainDocumentPart 通过包关系找到主文档部件的位置
// 没有 _rels/.rels 或其中没有主文档关系时返回 word/document.xml
func mainDocumentPart(parts map[string]*zip.File) (string, error) {
	relsFile, ok := parts[docxPackageRels]
	if !ok {
		return docxBodyPart, nil
	}

	rc, err := relsFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var rels packageRelationships
	if err := xml.NewDecoder(rc).Decode(&rels); err != nil {
		return "", fmt.Errorf("invalid %s: %v", docxPackageRels, err)
	}

	for _, rel := range rels.Relationships {
		if strings.HasSuffix(rel.Type, officeDocumentRel) && rel.Target != "" {
			// 包级关系的目标相对于包根目录
			return strings.TrimPrefix(path.Clean("/"+rel.Target), "/"), nil
		}
	}
	return docxBodyPart, nil
}

// readParagraphs 按文档顺序读取正文一级段落(w:body/w:p)的文本
// 表格、文本框中的段落不属于正文段落序列
func readParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		stack      []string
		current    strings.Builder
		paraDepth  = -1 // 当前正文段落在栈中的位置，-1表示不在段落内
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			depth := len(stack) - 1

			if paraDepth < 0 {
				if t.Name.Local == "p" && depth > 0 && stack[depth-1] == "body" {
					paraDepth = depth
					current.Reset()
				}
				continue
			}

			if !isRunChild(stack, paraDepth) {
				continue
			}
			switch t.Name.Local {
			case "tab", "ptab":
				current.WriteByte('\t')
			case "cr":
				current.WriteByte('\n')
			case "noBreakHyphen":
				current.WriteByte('-')
			case "br":
				if isLineBreak(t) {
					current.WriteByte('\n')
				}
			}

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unbalanced element %s", t.Name.Local)
			}
			if len(stack)-1 == paraDepth {
				paragraphs = append(paragraphs, current.String())
				paraDepth = -1
			}
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if paraDepth < 0 || stack[len(stack)-1] != "t" {
				continue
			}
			if isRunChild(stack, paraDepth) {
				current.Write(t)
			}
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("unexpected end of document")
	}
	return paragraphs, nil
}

// isRunChild 判断栈顶元素是否为段落文本块(w:r)的直接子元素
// 允许 p/r/x 以及 p/hyperlink/r/x，嵌套在图形或文本框中的内容不计入
func isRunChild(stack []string, paraDepth int) bool {
	rest := stack[paraDepth+1:]
	switch len(rest) {
	case 2:
		return rest[0] == "r"
	case 3:
		return rest[0] == "hyperlink" && rest[1] == "r"
	default:
		return false
	}
}

// isLineBreak 只有换行类型的w:br产生换行，分页和分栏不产生文本
func isLineBreak(el xml.StartElement) bool {
	for _, attr := range el.Attr {
		if attr.Name.Local == "type" {
			return attr.Value == "textWrapping"
		}
	}
	return true
}
