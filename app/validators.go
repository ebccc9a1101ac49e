package app

import (
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"Gin_postgres_redis_loan_tracker/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// registerValidators adds the binding tags used by request structs:
// civildate (YYYY-MM-DD) and damagestatus (None/Minor/Major/Lost).
func registerValidators(logger *slog.Logger) {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			logger.Warn("gin validator engine is not go-playground; custom tags disabled")
			return
		}
		if err := RegisterTags(v); err != nil {
			logger.Error("register validators", "error", err)
		}
	})
}

// RegisterTags installs the custom tags and makes field errors report the
// json (or form) name instead of the Go field name.
func RegisterTags(v *validator.Validate) error {
	v.RegisterTagNameFunc(requestFieldName)
	if err := v.RegisterValidation("civildate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.DateLayout, fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}
	return v.RegisterValidation("damagestatus", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || models.DamageStatus(s).Valid()
	})
}

func requestFieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}
