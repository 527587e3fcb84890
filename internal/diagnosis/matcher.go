package diagnosis

import (
	"errors"
	"fmt"
	"strings"

	"fundus-go/internal/dataset"
	"fundus-go/internal/intake"
)

var ErrCountMismatch = errors.New("左右眼图片数量不一致")

// Match 一个位置的匹配结果（患者记录的一部分）
type Match struct {
	Slot          int      `json:"slot"`
	LeftFilename  string   `json:"left_filename"`
	RightFilename string   `json:"right_filename"`
	Matched       bool     `json:"matched"`
	Conditions    []string `json:"conditions,omitempty"`
	Disease       string   `json:"disease"`
}

// CanonicalPair 位置 slot 对应的数据集文件名对
//
// 查找键是排序后的位置，而不是原文件名中的编号：上传的编号有空洞或重复时，两者可能不一致。
func CanonicalPair(slot int) (left, right string) {
	return fmt.Sprintf("%d_left.jpg", slot), fmt.Sprintf("%d_right.jpg", slot)
}

// DiseaseOf 用逗号拼接所有标记为 1 的病种，没有标记时为未知
func DiseaseOf(row dataset.Row) string {
	active := row.Active()
	if len(active) == 0 {
		return Unknown
	}
	return strings.Join(active, ",")
}

// Matcher 把左右眼序列与参考数据集关联
type Matcher struct {
	table *dataset.Table
}

// NewMatcher 创建匹配器，table 为 nil 时所有位置都是未知
func NewMatcher(table *dataset.Table) *Matcher {
	return &Matcher{table: table}
}

// MatchSlot 匹配单个位置
func (m *Matcher) MatchSlot(slot int) Match {
	left, right := CanonicalPair(slot)
	match := Match{Slot: slot, LeftFilename: left, RightFilename: right, Disease: Unknown}

	row, ok := m.table.Lookup(left, right)
	if !ok {
		return match
	}
	match.Matched = true
	match.Conditions = row.Active()
	match.Disease = DiseaseOf(row)
	return match
}

// Match 按位置逐一匹配，两个序列长度必须相同
func (m *Matcher) Match(left, right []intake.IndexedImage) ([]Match, error) {
	if len(left) != len(right) {
		return nil, fmt.Errorf("%w: 左眼 %d 张, 右眼 %d 张", ErrCountMismatch, len(left), len(right))
	}
	out := make([]Match, len(left))
	for i := range left {
		out[i] = m.MatchSlot(i)
	}
	return out, nil
}

// LookupByName 单张图片查找：按去掉扩展名、忽略大小写的文件名与对应眼别列比较
func (m *Matcher) LookupByName(name string, side intake.Side) (string, bool) {
	stem := fileStem(name)
	if stem == "" {
		return "", false
	}
	row, ok := m.table.Find(func(r dataset.Row) bool {
		col := r.LeftFilename
		if side == intake.SideRight {
			col = r.RightFilename
		}
		return col != "" && fileStem(col) == stem
	})
	if !ok {
		return "", false
	}
	return DiseaseOf(row), true
}

func fileStem(name string) string {
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(strings.TrimSpace(name))
}
