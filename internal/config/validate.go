package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their config key, e.g. clients[acme].prefix
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate returns every problem with the configuration. An empty result
// means the config can be used to build invoices.
func (c Config) Validate() []string {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []string{err.Error()}
		}
		for _, fe := range fieldErrs {
			problems = append(problems, describe(fe))
		}
	}

	if def, ok := c.HourlyRates["default"]; !ok || def <= 0 {
		problems = append(problems, ErrNoDefaultRate.Error())
	}
	for task, rate := range c.HourlyRates {
		if rate <= 0 && task != "default" {
			problems = append(problems, fmt.Sprintf("hourly_rates.%s must be greater than 0", task))
		}
	}
	for id, cl := range c.Clients {
		for task, rate := range cl.Rates {
			if rate <= 0 {
				problems = append(problems, fmt.Sprintf("clients[%s].rates.%s must be greater than 0", id, task))
			}
		}
	}

	sort.Strings(problems)
	return problems
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s is not a valid email address", field)
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
