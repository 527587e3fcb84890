package dataset

import "time"

type pairKey struct {
	left, right string
}

// Table 已加载的参考数据集，只读，可被多个匹配并发读取
type Table struct {
	source   string
	loadedAt time.Time
	rows     []Row
	byPair   map[pairKey]int
}

// NewTable 用已解析的行构建查找表，同一文件名对以第一次出现为准
func NewTable(source string, rows []Row) *Table {
	t := &Table{
		source:   source,
		loadedAt: time.Now(),
		rows:     rows,
		byPair:   make(map[pairKey]int, len(rows)),
	}
	for i, r := range rows {
		k := pairKey{r.LeftFilename, r.RightFilename}
		if _, exists := t.byPair[k]; !exists {
			t.byPair[k] = i
		}
	}
	return t
}

// Empty 空表，所有匹配都会降级为未知；未成功加载，LoadedAt 为零值
func Empty(source string) *Table {
	t := NewTable(source, nil)
	t.loadedAt = time.Time{}
	return t
}

// Lookup 按文件名对精确查找（区分大小写与扩展名）
func (t *Table) Lookup(left, right string) (Row, bool) {
	if t == nil {
		return Row{}, false
	}
	i, ok := t.byPair[pairKey{left, right}]
	if !ok {
		return Row{}, false
	}
	return t.rows[i], true
}

// Find 返回第一行满足条件的记录
func (t *Table) Find(pred func(Row) bool) (Row, bool) {
	if t == nil {
		return Row{}, false
	}
	for _, r := range t.rows {
		if pred(r) {
			return r, true
		}
	}
	return Row{}, false
}

// Len 行数
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Rows 行的副本
func (t *Table) Rows() []Row {
	if t == nil {
		return nil
	}
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Source 数据来源描述
func (t *Table) Source() string {
	if t == nil {
		return ""
	}
	return t.source
}

// LoadedAt 加载时间
func (t *Table) LoadedAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.loadedAt
}
