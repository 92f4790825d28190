// internal/storage/file_storage.go
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Corphon/VNScriptCreator/internal/models"
)

// 项目文件格式
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FormatFromPath 根据扩展名判断项目文件格式，未知扩展名按 JSON 处理
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// FormatFromContentType 根据请求的 Content-Type 判断格式
func FormatFromContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "yaml") {
		return FormatYAML
	}
	return FormatJSON
}

// DecodeProject 解析导出的项目数据（JSON 或 YAML）
func DecodeProject(data []byte, format string) (models.ExportBundle, error) {
	var bundle models.ExportBundle

	if len(bytes.TrimSpace(data)) == 0 {
		return bundle, fmt.Errorf("项目文件为空")
	}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &bundle); err != nil {
			return bundle, fmt.Errorf("解析YAML失败: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &bundle); err != nil {
			return bundle, fmt.Errorf("解析JSON失败: %w", err)
		}
	}
	return bundle, nil
}

// LoadProjectFile 读取项目文件
func LoadProjectFile(path string) (models.ExportBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ExportBundle{}, fmt.Errorf("读取项目文件失败: %w", err)
	}
	return DecodeProject(data, FormatFromPath(path))
}

// SaveTextFile 原子性写入文本文件：先写临时文件再重命名
func SaveTextFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("保存临时文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("保存临时文件失败: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("设置文件权限失败: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("保存文件失败: %w", err)
	}
	return nil
}
