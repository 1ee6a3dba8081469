package settings

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/hitoshi/feedpress/internal/model"
)

// Service はサイト設定のシングルトンを管理する。
// 更新は直列化され、保存に成功した場合のみメモリ上の値を置き換える。
type Service struct {
	store  Store
	logger *slog.Logger

	mu      sync.RWMutex
	current model.Settings
}

// NewService は保存済みの設定を読み込んでServiceを生成する。
// 読み込みに失敗した場合はエラーを返す。未保存の場合はデフォルト値で開始する。
func NewService(store Store, logger *slog.Logger) (*Service, error) {
	s, found, err := store.Load()
	if err != nil {
		return nil, model.NewStoreFailedError(err)
	}
	if !found {
		logger.Info("保存済みの設定がないためデフォルト値を使用します")
	}
	return &Service{store: store, logger: logger, current: s}, nil
}

// Get は現在の設定を返す。
func (s *Service) Get() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update はpatchのトップレベルのフィールドを現在の設定に上書きして保存する。
// ネストしたオブジェクト(database)は丸ごと置き換わる。未知のフィールドは無視する。
// databaseのpasswordが空または伏せ字、connectionStringが空の場合は保存済みの値を維持する。
func (s *Service) Update(patch []byte) (model.Settings, error) {
	fields, err := decodePatch(patch)
	if err != nil {
		return model.Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged, err := shallowMerge(s.current, fields)
	if err != nil {
		return model.Settings{}, err
	}
	if _, ok := fields["database"]; ok {
		merged.Database = preserveSecrets(s.current.Database, merged.Database)
	}

	if err := s.store.Save(merged); err != nil {
		s.logger.Error("設定の保存に失敗しました", slog.String("error", err.Error()))
		return model.Settings{}, model.NewSettingsSaveFailedError(err)
	}
	s.current = merged

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	s.logger.Info("設定を更新しました", slog.Any("fields", keys))
	return merged, nil
}

func decodePatch(patch []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(patch)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, model.NewInvalidRequestError("設定はJSONオブジェクトで指定してください")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, model.NewInvalidRequestError("設定のJSONが不正です")
	}
	return fields, nil
}

// shallowMerge はcurrentをJSONのトップレベルのキー単位でfieldsと合成する。
func shallowMerge(current model.Settings, fields map[string]json.RawMessage) (model.Settings, error) {
	base, err := json.Marshal(current)
	if err != nil {
		return model.Settings{}, model.NewStoreFailedError(err)
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return model.Settings{}, model.NewStoreFailedError(err)
	}
	for k, v := range fields {
		merged[k] = v
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return model.Settings{}, model.NewInvalidRequestError("設定のJSONが不正です")
	}
	var out model.Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return model.Settings{}, model.NewInvalidRequestError("設定の値の型が不正です: " + err.Error())
	}
	return out, nil
}

// preserveSecrets はGETで伏せられた秘密情報をそのまま送り返された場合に現在の値を残す。
func preserveSecrets(current, incoming model.DatabaseSettings) model.DatabaseSettings {
	if incoming.Password == "" || incoming.Password == model.RedactedSecret {
		incoming.Password = current.Password
	}
	if incoming.ConnectionString == "" {
		incoming.ConnectionString = current.ConnectionString
	}
	return incoming
}
