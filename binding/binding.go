// Package binding 解析标题模板中的 ${...} 占位符。
package binding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ByLCY/jacket/layout"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// CaptionData 构造标题模板可引用的数据：
//
//	${job.name} ${job.books}            作业名与书的数量
//	${book.isbn} ${book.short} ...      第一本书（共享标题最常见的引用）
//	${books[2].isbn} ${books[2].index}  任意一本书，index 从 1 开始
func CaptionData(jobName string, books []layout.BookSpec) map[string]any {
	list := make([]any, 0, len(books))
	for i, b := range books {
		list = append(list, bookData(i, b))
	}
	data := map[string]any{
		"job":   map[string]any{"name": jobName, "books": len(books)},
		"books": list,
	}
	if len(list) > 0 {
		data["book"] = list[0]
	}
	return data
}

func bookData(i int, b layout.BookSpec) map[string]any {
	return map[string]any{
		"id":     b.ID,
		"index":  i + 1,
		"isbn":   b.ISBN,
		"short":  b.ShortText,
		"small":  b.SmallText,
		"color":  b.ColorToken,
		"spine":  formatMm(b.SpineWidthMm),
		"cover":  formatMm(b.CoverWidthMm),
		"height": formatMm(b.HeightMm),
	}
}

func formatMm(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) + "mm" }

// Interpolate 将文本中的 ${path.to.value} 替换为 data 中的值。
// 若 data 为空或路径不存在，则保留原占位符。
func Interpolate(text string, data any) string {
	if data == nil {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		if val, ok := lookup(data, match); ok {
			return fmt.Sprint(val)
		}
		return match
	})
}

// Unresolved 返回无法解析的占位符路径，用于在接收模板时给出提示。
func Unresolved(text string, data any) []string {
	var missing []string
	for _, match := range exprPattern.FindAllString(text, -1) {
		if _, ok := lookup(data, match); !ok {
			missing = append(missing, strings.TrimSpace(match[2:len(match)-1]))
		}
	}
	return missing
}

func lookup(data any, match string) (any, bool) {
	groups := exprPattern.FindStringSubmatch(match)
	if len(groups) < 2 {
		return nil, false
	}
	path := strings.TrimSpace(groups[1])
	if path == "" {
		return nil, false
	}
	return resolvePath(data, path)
}

func resolvePath(data any, path string) (any, bool) {
	current := data
	for _, segment := range strings.Split(path, ".") {
		name, indexes := parseSegment(segment)
		if name != "" {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			if current, ok = m[name]; !ok {
				return nil, false
			}
		}
		for _, idxStr := range indexes {
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, false
			}
			list, ok := current.([]any)
			// 模板中的下标从 1 开始，与 ${book.index} 一致
			if !ok || idx < 1 || idx > len(list) {
				return nil, false
			}
			current = list[idx-1]
		}
	}
	return current, true
}

func parseSegment(segment string) (string, []string) {
	name := segment
	var indexes []string
	if i := strings.Index(segment, "["); i != -1 {
		name = segment[:i]
		rest := segment[i:]
		for len(rest) > 0 && rest[0] == '[' {
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				break
			}
			indexes = append(indexes, rest[1:end])
			rest = rest[end+1:]
		}
	}
	return name, indexes
}
