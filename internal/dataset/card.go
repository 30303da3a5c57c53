package dataset

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"gopkg.in/yaml.v3"
)

// CardPath 数据集说明文件在仓库中的路径
const CardPath = "README.md"

// cardMeta 数据集说明的YAML头信息
type cardMeta struct {
	Configs     []cardConfig `yaml:"configs"`
	DatasetInfo cardInfo     `yaml:"dataset_info"`
}

type cardConfig struct {
	ConfigName string         `yaml:"config_name"`
	DataFiles  []cardDataFile `yaml:"data_files"`
}

type cardDataFile struct {
	Split string `yaml:"split"`
	Path  string `yaml:"path"`
}

type cardInfo struct {
	Features []cardFeature `yaml:"features"`
	Splits   []cardSplit   `yaml:"splits"`
}

type cardFeature struct {
	Name  string `yaml:"name"`
	Dtype string `yaml:"dtype"`
}

type cardSplit struct {
	Name        string `yaml:"name"`
	NumExamples int    `yaml:"num_examples"`
}

// Card 数据集说明文件
type Card struct {
	Meta string // YAML头信息(不含分隔线)
	Body string // Markdown正文
}

// String 返回完整的README内容
func (c Card) String() string {
	return "---\n" + c.Meta + "---\n\n" + c.Body
}

// BuildCard 为数据集生成README说明
func BuildCard(repoID string, bundle Bundle) (Card, error) {
	meta := cardMeta{
		Configs: []cardConfig{{
			ConfigName: "default",
			DataFiles: []cardDataFile{
				{Split: string(SplitTrain), Path: DataPath(SplitTrain)},
				{Split: string(SplitTest), Path: DataPath(SplitTest)},
			},
		}},
		DatasetInfo: cardInfo{
			Features: []cardFeature{
				{Name: "section_title", Dtype: "string"},
				{Name: "content", Dtype: "string"},
			},
			Splits: []cardSplit{
				{Name: string(SplitTrain), NumExamples: len(bundle.Train)},
				{Name: string(SplitTest), NumExamples: len(bundle.Test)},
			},
		},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(meta); err != nil {
		return Card{}, fmt.Errorf("failed to encode card metadata: %w", err)
	}
	if err := enc.Close(); err != nil {
		return Card{}, fmt.Errorf("failed to encode card metadata: %w", err)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "# %s\n\n", repoID)
	body.WriteString("Documents converted from Word (.docx) files to JSON Lines.\n\n")
	body.WriteString("## Splits\n\n")
	body.WriteString("| split | examples |\n|---|---|\n")
	fmt.Fprintf(&body, "| %s | %d |\n", SplitTrain, len(bundle.Train))
	fmt.Fprintf(&body, "| %s | %d |\n\n", SplitTest, len(bundle.Test))
	body.WriteString("## Record format\n\n")
	fmt.Fprintf(&body, "```json\n{\"section_title\": %q, \"content\": \"...\"}\n```\n", SectionTitle)

	return Card{Meta: buf.String(), Body: body.String()}, nil
}

// RenderCardHTML 将说明正文渲染为HTML，用于预览
func RenderCardHTML(card Card) string {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	doc := mdParser.Parse([]byte(card.Body))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return string(markdown.Render(doc, renderer))
}
