package datasource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEndpointsFromFile(t *testing.T) {
	path := writeTempFile(t, "endpoints.txt", `
# 主力节点
http://cdn-a.example.com:8080/
http://cdn-b.example.com:8080

http://cdn-a.example.com:8080
`)

	endpoints, err := LoadEndpointsFromFile(path)
	require.NoError(t, err)
	// 去掉尾部斜杠后重复项只留第一次出现,顺序保持文件顺序
	require.Equal(t, []string{
		"http://cdn-a.example.com:8080",
		"http://cdn-b.example.com:8080",
	}, endpoints)
}

func TestLoadEndpointsFromFileEmpty(t *testing.T) {
	path := writeTempFile(t, "endpoints.txt", "# 只有注释\n\n")
	_, err := LoadEndpointsFromFile(path)
	require.Error(t, err)
}

func TestLoadEndpointsFromFileMissing(t *testing.T) {
	_, err := LoadEndpointsFromFile(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}
