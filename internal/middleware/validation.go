package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/pkg/httputil"
)

// ValidationError describes one rejected field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationConfig struct {
	CustomValidators    map[string]validator.Func
	CustomErrorMessages map[string]string
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		CustomValidators: map[string]validator.Func{
			"alertstatus": func(fl validator.FieldLevel) bool {
				return model.AlertStatus(fl.Field().String()).Valid()
			},
			"severity": func(fl validator.FieldLevel) bool {
				return model.Severity(fl.Field().String()).Valid()
			},
			"alerttype": func(fl validator.FieldLevel) bool {
				return model.AlertType(fl.Field().String()).Valid()
			},
		},
		CustomErrorMessages: map[string]string{
			"required":    "field is required",
			"email":       "invalid email format",
			"min":         "value is too small",
			"max":         "value is too large",
			"gt":          "value is too small",
			"gte":         "value is too small",
			"lte":         "value is too large",
			"uuid":        "invalid id",
			"alertstatus": "must be one of pending, acknowledged, resolved, escalated",
			"severity":    "must be one of low, medium, high, critical",
			"alerttype":   "unknown alert type",
		},
	}
}

var registerOnce sync.Once

// RegisterValidators installs the custom rules on gin's validator and makes
// field errors use json names
func RegisterValidators(config ValidationConfig) error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("unexpected validator engine")
			return
		}
		for tag, fn := range config.CustomValidators {
			if err = v.RegisterValidation(tag, fn); err != nil {
				return
			}
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})
	})
	return err
}

// Validation turns binding errors recorded by handlers into a 400 listing
// the offending fields
func Validation(config ValidationConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		var fields []ValidationError
		for _, e := range c.Errors {
			var errs validator.ValidationErrors
			if !errors.As(e.Err, &errs) {
				continue
			}
			for _, fe := range errs {
				msg := config.CustomErrorMessages[fe.Tag()]
				if msg == "" {
					msg = fe.Error()
				}
				fields = append(fields, ValidationError{
					Field:   fe.Field(),
					Message: msg,
				})
			}
		}

		if len(fields) > 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, httputil.Response{
				Success: false,
				Data:    fields,
				Error: &httputil.Error{
					Code:    http.StatusBadRequest,
					Message: "validation failed",
				},
			})
		}
	}
}
