package validator

import (
	"reflect"
	"strings"

	"github.com/GetStream/duosync/feed"
	"github.com/go-playground/validator/v10"
)

// Validator is a struct that provides methods for struct validation using the underlying validator library.
type Validator struct {
	cli *validator.Validate
}

// ValidationError represents an error encountered during validation of a struct field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is a list of validation errors usable as an error value.
type Errors []ValidationError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Message
	}
	return strings.Join(msgs, "; ")
}

func (v *Validator) formatError(err error) Errors {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return Errors{{Message: err.Error()}}
	}
	errors := make(Errors, 0, len(verrs))
	for _, err := range verrs {
		// Drop the root type name: "request.text" becomes "text".
		field := err.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		errors = append(errors, ValidationError{
			Field:   field,
			Message: err.Error(),
		})
	}
	return errors
}

// ValidateStruct validates the provided struct using the underlying validator and returns a slice of validation errors.
func (v *Validator) ValidateStruct(s any) Errors {
	err := v.cli.Struct(s)
	if err != nil {
		return v.formatError(err)
	}
	return nil
}

// Validate checks the provided value against the specified validation tags and returns a slice of validation errors.
func (v *Validator) Validate(value any, tag string) Errors {
	err := v.cli.Var(value, tag)
	if err != nil {
		return v.formatError(err)
	}
	return nil
}

// New initializes and returns a new instance of the Validator. Field names are taken
// from json or yaml tags, and the "reaction" tag accepts a reaction kind or its emoji.
func New() *Validator {
	cli := validator.New(validator.WithRequiredStructEnabled())
	cli.RegisterTagNameFunc(tagName)
	_ = cli.RegisterValidation("reaction", func(fl validator.FieldLevel) bool {
		_, err := feed.ParseReactionKind(fl.Field().String())
		return err == nil
	})
	return &Validator{
		cli: cli,
	}
}

func tagName(f reflect.StructField) string {
	for _, key := range []string{"json", "yaml"} {
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
