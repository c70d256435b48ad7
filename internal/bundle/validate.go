package bundle

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/bundle-admin/internal/pricing"
)

var hundred = decimal.NewFromInt(100)

// NewValidator builds the validator used for bundle requests. Field names in
// errors follow the JSON tags.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateDiscount, DiscountInput{})
	return v
}

func validateDiscount(sl validator.StructLevel) {
	d := sl.Current().Interface().(DiscountInput)
	if d.NoDiscount || (d.DiscountType == "" && !d.DiscountValue.Valid) {
		return
	}
	kind := pricing.ParseDiscountType(d.DiscountType)
	if kind == pricing.DiscountNone {
		sl.ReportError(d.DiscountType, "discountType", "DiscountType", "oneof", "percentage fixed")
		return
	}
	if !d.DiscountValue.Valid {
		sl.ReportError(d.DiscountValue, "discountValue", "DiscountValue", "required", "")
		return
	}
	value := d.DiscountValue.Decimal
	if value.IsNegative() {
		sl.ReportError(d.DiscountValue, "discountValue", "DiscountValue", "gte", "0")
		return
	}
	// stored as NUMERIC(12, 2); a finer value would not match the pushed prices
	if !value.Equal(value.Round(2)) {
		sl.ReportError(d.DiscountValue, "discountValue", "DiscountValue", "decimals", "2")
		return
	}
	if kind == pricing.DiscountPercentage && value.GreaterThan(hundred) {
		sl.ReportError(d.DiscountValue, "discountValue", "DiscountValue", "lte", "100")
	}
}

// FieldError is one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func (s *Service) check(in any) error {
	v := s.Validate
	if v == nil {
		v = defaultValidator
	}
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return validationError(err.Error(), nil)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: trimNamespace(fe.Namespace()), Rule: fe.Tag(), Param: fe.Param()})
	}
	return validationError("invalid bundle input: "+describe(fields[0]), fields)
}

var defaultValidator = NewValidator()

func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	// fields of the embedded discount input are reported under its type name
	return strings.TrimPrefix(ns, "DiscountInput.")
}

func describe(fe FieldError) string {
	switch fe.Rule {
	case "required":
		return fe.Field + " is required"
	case "min":
		return fe.Field + " must be at least " + fe.Param
	case "oneof":
		return fe.Field + " must be one of: " + fe.Param
	case "gte":
		return fe.Field + " must be >= " + fe.Param
	case "lte":
		return fe.Field + " must be <= " + fe.Param
	case "decimals":
		return fe.Field + " must have at most " + fe.Param + " decimal places"
	}
	return fe.Field + " is invalid"
}
