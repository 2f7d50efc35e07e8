package common

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mitchellh/mapstructure"

	"github.com/teemow/gapi/internal/google"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report argument names as the client sent them.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// DecodeArgs decodes tool arguments into out and validates the result.
// out must be a pointer to a struct with mapstructure and validate tags.
// Fields already set on out act as defaults; arguments that are absent or
// null leave them untouched. A comma separated string is accepted where a
// list is expected.
func DecodeArgs(ctx context.Context, args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create argument decoder: %w", err)
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := validate.StructCtx(ctx, out); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("missing required argument %q", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("invalid value for %s", fe.Field()))
		}
	}
	return fmt.Errorf("invalid arguments: %s", strings.Join(msgs, "; "))
}

// ErrorResult turns err into a tool error result.
func ErrorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(google.FormatError(err))
}

// ArgsErrorResult reports an argument problem without the generic prefix.
func ArgsErrorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}
