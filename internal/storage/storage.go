// Package storage хранилище скриншотов оплаты (S3-совместимое).
package storage

import "context"

// ProofStore загрузка скриншота и выдача временной ссылки на него
type ProofStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, key string) (string, error)
}
