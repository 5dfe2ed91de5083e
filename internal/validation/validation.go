// Package validation wires the request rules shared by the HTTP handlers into
// gin's validator and turns binding failures into a field-level error list.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"taskmanager/internal/models"
)

const passwordSpecials = "@$!%*?&#"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var registerOnce sync.Once

// Register installs the custom rules on gin's default validator. Safe to call
// more than once.
func Register() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("unexpected validator engine")
			return
		}

		v.RegisterTagNameFunc(jsonFieldName)
		if err = v.RegisterValidation("password_policy", func(fl validator.FieldLevel) bool {
			return PasswordPolicy(fl.Field().String())
		}); err != nil {
			return
		}
		if err = v.RegisterValidation("login_identifier", func(fl validator.FieldLevel) bool {
			return LoginIdentifier(fl.Field().String())
		}); err != nil {
			return
		}
		if err = v.RegisterValidation("task_status", func(fl validator.FieldLevel) bool {
			return models.TaskStatus(fl.Field().String()).Valid()
		}); err != nil {
			return
		}
		err = v.RegisterValidation("task_priority", func(fl validator.FieldLevel) bool {
			return models.TaskPriority(fl.Field().String()).Valid()
		})
	})
	return err
}

// PasswordPolicy requires a lower-case letter, an upper-case letter, a digit
// and one of @$!%*?&#, and allows nothing else.
func PasswordPolicy(password string) bool {
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

// LoginIdentifier accepts anything shaped like an email, or a username of at
// least three characters.
func LoginIdentifier(value string) bool {
	return emailPattern.MatchString(value) || len(value) >= 3
}

// Errors flattens a ShouldBind error into per-field messages.
func Errors(err error) []FieldError {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return []FieldError{{Field: typeErr.Field, Message: fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type)}}
	}

	return []FieldError{{Field: "body", Message: "Invalid request payload"}}
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	if field == "password" {
		switch fe.Tag() {
		case "required":
			return "Password is required."
		case "min":
			return fmt.Sprintf("Password should be at least %s characters long.", fe.Param())
		case "max":
			return fmt.Sprintf("Password should not exceed %s characters.", fe.Param())
		case "password_policy":
			return "Password must have at least one uppercase letter, one lowercase letter, one number, and one special character."
		}
	}

	switch fe.Tag() {
	case "required", "required_without_all":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "numeric":
		return fmt.Sprintf("%s must contain only digits", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "task_status":
		return fmt.Sprintf("%s must be one of [Pending, In Progress, Completed]", field)
	case "task_priority":
		return fmt.Sprintf("%s must be one of [Low, Medium, High]", field)
	case "login_identifier":
		return fmt.Sprintf("%s must be a valid email or at least 3 characters for a username", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}
