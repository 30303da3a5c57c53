// Package dataset 负责训练/测试集的划分、组装与序列化
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// SectionTitle 每条记录固定的章节标题
const SectionTitle = "RAG Post"

// Split 数据集划分名称
type Split string

const (
	// SplitTrain 训练集
	SplitTrain Split = "train"
	// SplitTest 测试集
	SplitTest Split = "test"
)

// Record 由一个源文件生成的一条数据记录
type Record struct {
	SectionTitle string `json:"section_title"`
	Content      string `json:"content"`
}

// NewRecord 用提取出的文本创建记录
func NewRecord(content string) Record {
	return Record{
		SectionTitle: SectionTitle,
		Content:      content,
	}
}

// Bundle 待发布的数据集，包含train和test两个划分
type Bundle struct {
	Train []Record
	Test  []Record
}

// Splits 以名称为键返回两个划分，两个键总是存在
func (b Bundle) Splits() map[Split][]Record {
	return map[Split][]Record{
		SplitTrain: nonNil(b.Train),
		SplitTest:  nonNil(b.Test),
	}
}

// Empty 两个划分都没有记录
func (b Bundle) Empty() bool {
	return len(b.Train) == 0 && len(b.Test) == 0
}

// File 数据集仓库中的一个文件
type File struct {
	Path    string
	Content []byte
}

// DataPath 返回划分对应的数据文件路径
func DataPath(split Split) string {
	return fmt.Sprintf("data/%s.jsonl", split)
}

// Files 将两个划分序列化为JSONL文件，顺序固定为train、test
func (b Bundle) Files() ([]File, error) {
	files := make([]File, 0, 2)
	for _, split := range []Split{SplitTrain, SplitTest} {
		content, err := MarshalJSONL(b.Splits()[split])
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s split: %w", split, err)
		}
		files = append(files, File{Path: DataPath(split), Content: content})
	}
	return files, nil
}

// WriteJSONL 每行写入一个JSON对象
func WriteJSONL(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// MarshalJSONL 返回记录的JSONL编码
func MarshalJSONL(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func nonNil(records []Record) []Record {
	if records == nil {
		return []Record{}
	}
	return records
}
