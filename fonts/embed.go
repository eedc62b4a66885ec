package fonts

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
)

// builtin 为内置字体表，键为 embed:<name> 中的 name。
var builtin = map[string][]byte{
	"go-regular":     goregular.TTF,
	"go-bold":        gobold.TTF,
	"go-italic":      goitalic.TTF,
	"go-bold-italic": gobolditalic.TTF,
	"go-medium":      gomedium.TTF,
}

// Load 返回内置字体的字节数据，name 可写为 "embed:go-bold" 或直接 "go-bold"。
func Load(name string) ([]byte, error) {
	key := strings.ToLower(strings.TrimPrefix(name, "embed:"))
	data, ok := builtin[key]
	if !ok {
		return nil, fmt.Errorf("读取内置字体 %s 失败: 未知字体（可用: %s）", name, strings.Join(Names(), ", "))
	}
	return data, nil
}

// Names 返回全部内置字体名。
func Names() []string {
	out := make([]string, 0, len(builtin))
	for k := range builtin {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
