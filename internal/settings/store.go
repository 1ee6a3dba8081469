// Package settings はサイト設定の取得・更新と永続化を提供する。
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hitoshi/feedpress/internal/model"
)

// Store はサイト設定の永続化先。
type Store interface {
	// Load は保存済みの設定を返す。未保存の場合はfoundにfalseを返す。
	Load() (s model.Settings, found bool, err error)
	// Save は設定全体を置き換える。
	Save(s model.Settings) error
}

// FileStore はJSONファイルに設定を保存するStore。
// 書き込みは一時ファイルへの書き出し、fsync、renameの順で行い、途中で失敗しても既存のファイルは壊れない。
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore はFileStoreを生成する。
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load はファイルから設定を読み込む。
// ファイルに含まれないフィールドはデフォルト値で補う。
func (f *FileStore) Load() (model.Settings, bool, error) {
	s := model.DefaultSettings()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, false, nil
	}
	if err != nil {
		return s, false, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := json.Unmarshal(data, &s); err != nil {
		return model.DefaultSettings(), false, fmt.Errorf("failed to decode settings file: %w", err)
	}
	return s, true, nil
}

// Save は設定をアトミックにファイルへ書き込む。
func (f *FileStore) Save(s model.Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	committed = true
	return nil
}
