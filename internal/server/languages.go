package server

import (
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const supportedLanguageTag = "supported_language"

// supportedLanguages lists the language identifiers accepted by the code
// endpoints. Matching is case-insensitive.
var supportedLanguages = map[string]bool{
	"javascript": true,
	"typescript": true,
	"python":     true,
	"java":       true,
	"cpp":        true,
	"c":          true,
	"csharp":     true,
	"go":         true,
	"rust":       true,
	"ruby":       true,
	"php":        true,
	"kotlin":     true,
	"swift":      true,
}

// IsSupportedLanguage reports whether lang is on the allow-list.
func IsSupportedLanguage(lang string) bool {
	return supportedLanguages[strings.ToLower(strings.TrimSpace(lang))]
}

// SupportedLanguages returns the allow-list in sorted order.
func SupportedLanguages() []string {
	langs := make([]string, 0, len(supportedLanguages))
	for lang := range supportedLanguages {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}

var registerOnce sync.Once

// registerValidators installs the custom binding rules on gin's validator
// engine and makes field errors report JSON names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation(supportedLanguageTag, func(fl validator.FieldLevel) bool {
			return IsSupportedLanguage(fl.Field().String())
		})
	})
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}
