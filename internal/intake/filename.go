package intake

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Side 眼别
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Valid 是否为已知眼别
func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// Label 中文眼别
func (s Side) Label() string {
	switch s {
	case SideLeft:
		return "左眼"
	case SideRight:
		return "右眼"
	default:
		return string(s)
	}
}

// ParseSide 解析眼别字符串
func ParseSide(s string) (Side, error) {
	side := Side(strings.ToLower(strings.TrimSpace(s)))
	if !side.Valid() {
		return "", fmt.Errorf("未知眼别: %q", s)
	}
	return side, nil
}

var (
	leftPattern  = regexp.MustCompile(`(?i)^\d+_left\.(jpg|jpeg|png)$`)
	rightPattern = regexp.MustCompile(`(?i)^\d+_right\.(jpg|jpeg|png)$`)
	indexPattern = regexp.MustCompile(`^(\d+)_`)
)

// Validate 文件名是否满足 {index}_{side}.{jpg|jpeg|png}
func Validate(name string, side Side) bool {
	switch side {
	case SideLeft:
		return leftPattern.MatchString(name)
	case SideRight:
		return rightPattern.MatchString(name)
	default:
		return false
	}
}

// ExtractIndex 提取第一个 '_' 之前的前导数字
//
// ok 为 false 表示没有可解析的索引（包括超出 int 范围的数字）。
func ExtractIndex(name string) (index int, ok bool) {
	m := indexPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// NamingHint 提示给操作者的命名规则
func NamingHint(side Side) string {
	return fmt.Sprintf("文件名必须为 数字_%s.jpg/jpeg/png，例如 0_%s.jpg", side, side)
}
