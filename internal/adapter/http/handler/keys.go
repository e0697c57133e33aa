package handler

import (
	"hero-mint-service/internal/adapter/http/dto"
	"hero-mint-service/pkg/apperror"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

// resolveIdempotencyKey picks the key from the header or the body. When both
// are present they must agree.
func resolveIdempotencyKey(header, body string) (string, error) {
	key := header
	if key == "" {
		key = body
	} else if body != "" && body != header {
		return "", apperror.ErrInvalidRequest("Idempotency-Key header and idempotency_key field differ")
	}
	if key == "" {
		return "", apperror.ErrInvalidRequest("idempotency key is required")
	}
	if !dto.ValidIdempotencyKey(key) {
		return "", apperror.ErrInvalidRequest("idempotency key may only contain letters, digits, '.', '_' and '-' (max 128)")
	}
	return key, nil
}
