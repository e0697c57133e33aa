package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"hero-mint-service/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("safe_id", validateSafeID)
	}
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// ValidIdempotencyKey reports whether key can be used as an idempotency key.
func ValidIdempotencyKey(key string) bool {
	return domain.ValidIdempotencyKey(key)
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer. Fields tagged
// `sanitize:"trim"` are only trimmed.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		trimOnly := rt.Field(i).Tag.Get("sanitize") == "trim"
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String(), trimOnly))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String(), trimOnly))
			}
		}
	}
}

func sanitize(s string, trimOnly bool) string {
	s = strings.TrimSpace(s)
	if trimOnly {
		return s
	}
	return html.EscapeString(s)
}
