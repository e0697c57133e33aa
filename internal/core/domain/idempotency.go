package domain

import "regexp"

// MaxIdempotencyKeyLength bounds caller-supplied idempotency keys.
const MaxIdempotencyKeyLength = 128

var idempotencyKeyRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

// ValidIdempotencyKey reports whether key can be embedded in a ledger key.
// The derived keys below join segments with ':', so it is not allowed.
func ValidIdempotencyKey(key string) bool {
	return len(key) <= MaxIdempotencyKeyLength && idempotencyKeyRe.MatchString(key)
}

// Ledger idempotency keys are global, so every derived key is namespaced by
// purpose and user.

// BuildLockKey derives the ledger key of the LOCK entry of a mint.
func BuildLockKey(userID, idempotencyKey string) string {
	return "mint:lock:" + userID + ":" + idempotencyKey
}

// BuildSpendKey derives the ledger key of the SPEND entry of a mint.
func BuildSpendKey(userID, idempotencyKey string) string {
	return "mint:spend:" + userID + ":" + idempotencyKey
}

// BuildUnlockKey derives the ledger key of an UNLOCK entry.
func BuildUnlockKey(userID, referenceID string) string {
	return "unlock:" + userID + ":" + referenceID
}

// BuildDepositKey derives the ledger key of a caller-keyed deposit.
func BuildDepositKey(userID, idempotencyKey string) string {
	return "deposit:" + userID + ":" + idempotencyKey
}

// BuildProvisionKey derives the ledger key of the initial wallet credit.
func BuildProvisionKey(userID string) string {
	return "provision:" + userID
}

// BuildOutcomeCacheKey is the fast-path cache key of a mint outcome.
func BuildOutcomeCacheKey(userID, idempotencyKey string) string {
	return userID + ":" + idempotencyKey
}
