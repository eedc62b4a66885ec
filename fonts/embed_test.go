package fonts

import "testing"

func TestLoadBuiltin(t *testing.T) {
	for _, name := range []string{"embed:go-regular", "go-bold", "EMBED:GO-ITALIC"} {
		data, err := Load(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(data) == 0 {
			t.Fatalf("%s: 字体数据为空", name)
		}
	}
	if _, err := Load("embed:Inter-Regular"); err == nil {
		t.Fatalf("未知字体应报错")
	}
}
