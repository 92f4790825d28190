// web/embed.go
package web

import (
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates 解析内嵌的页面模板
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"join": strings.Join,
	}).ParseFS(templateFS, "templates/*.html")
}
