// Package cache は公開記事一覧のキャッシュを提供する。
package cache

import (
	"context"
	"time"
)

// Cache はJSONでシリアライズした値をキー単位で保持するキャッシュのインターフェース。
type Cache interface {
	// Get はキーの値をdstにデコードする。キーが存在しない場合はfalseを返す。
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set は値をJSONにエンコードしてttl付きで保存する。
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Delete はキーを削除する。存在しないキーでもエラーにしない。
	Delete(ctx context.Context, keys ...string) error
	// Ping は接続先の疎通を確認する。
	Ping(ctx context.Context) error
	Close() error
}

// Nop は何も保持しないCache。REDIS_ADDR未設定時に使用する。
type Nop struct{}

var _ Cache = Nop{}

func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Delete(context.Context, ...string) error { return nil }
func (Nop) Ping(context.Context) error { return nil }
func (Nop) Close() error { return nil }
