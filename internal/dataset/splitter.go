package dataset

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MinTestSplit 测试集百分比下限
	MinTestSplit = 1
	// MaxTestSplit 测试集百分比上限
	MaxTestSplit = 100
	// DefaultTestSplit 默认测试集百分比
	DefaultTestSplit = 20
)

// ErrInvalidSplit 测试集百分比超出范围
var ErrInvalidSplit = errors.New("invalid test split percentage")

// Splitter 按位置索引划分训练/测试集
//
// period = 100 / P (实数)，索引 i 满足 i mod period == 0 时进入测试集。
// 这不是按总数计算的精确百分比，P=20时索引0,5,10...进入测试集，
// 只有N是5的倍数时测试集才恰好占20%。
type Splitter struct {
	percent int
	period  float64
}

// NewSplitter 创建划分器，percent取值范围为1-100
func NewSplitter(percent int) (*Splitter, error) {
	if percent < MinTestSplit || percent > MaxTestSplit {
		return nil, fmt.Errorf("%w: %d (must be between %d and %d)",
			ErrInvalidSplit, percent, MinTestSplit, MaxTestSplit)
	}
	return &Splitter{
		percent: percent,
		period:  100.0 / float64(percent),
	}, nil
}

// Percent 返回测试集百分比
func (s *Splitter) Percent() int {
	return s.percent
}

// Period 返回划分周期
func (s *Splitter) Period() float64 {
	return s.period
}

// Assign 返回位置索引i对应的划分
func (s *Splitter) Assign(i int) Split {
	if math.Mod(float64(i), s.period) == 0 {
		return SplitTest
	}
	return SplitTrain
}

// Assembler 按划分器的结果累积记录
type Assembler struct {
	splitter *Splitter
	train    []Record
	test     []Record
}

// NewAssembler 创建组装器
func NewAssembler(splitter *Splitter) *Assembler {
	return &Assembler{
		splitter: splitter,
		train:    []Record{},
		test:     []Record{},
	}
}

// Add 将位置i的记录放入对应划分，返回所选划分
func (a *Assembler) Add(i int, rec Record) Split {
	split := a.splitter.Assign(i)
	if split == SplitTest {
		a.test = append(a.test, rec)
	} else {
		a.train = append(a.train, rec)
	}
	return split
}

// Len 返回已累积的记录数
func (a *Assembler) Len() int {
	return len(a.train) + len(a.test)
}

// Bundle 返回组装好的数据集
func (a *Assembler) Bundle() Bundle {
	return Bundle{
		Train: a.train,
		Test:  a.test,
	}
}
