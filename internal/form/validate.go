package form

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/locales/zh_Hant_TW"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zhtw "github.com/go-playground/validator/v10/translations/zh_tw"

	"github.com/kingrea/qc-desk/internal/inspection"
)

// submission is the view of a draft the submission policy is checked on.
// Text fields are trimmed so whitespace-only values count as empty; the
// order number is kept raw so its check agrees with Manager.OrderValid.
type submission struct {
	SalesType       string `field:"salesType" label:"銷售類別" validate:"required,oneof=domestic export"`
	Customer        string `field:"customer" label:"客戶" validate:"required_if=SalesType export"`
	ProductionOrder string `field:"productionOrder" label:"製令單號" validate:"required,utf16len=16"`
	Operator        string `field:"operator" label:"作業員" validate:"required"`
	DrawingVersion  string `field:"drawingVersion" label:"圖面版次" validate:"required"`
	Inspector       string `field:"inspector" label:"檢驗員" validate:"required"`
}

func submissionOf(rec inspection.Record) submission {
	return submission{
		SalesType:       string(rec.SalesType),
		Customer:        strings.TrimSpace(rec.Customer),
		ProductionOrder: rec.ProductionOrder,
		Operator:        strings.TrimSpace(rec.Operator),
		DrawingVersion:  strings.TrimSpace(rec.DrawingVersion),
		Inspector:       strings.TrimSpace(rec.Inspector),
	}
}

// Issues maps a field name to its inline validation message.
type Issues map[string]string

// Fields returns the failing field names in a stable order.
func (i Issues) Fields() []string {
	fields := make([]string, 0, len(i))
	for field := range i {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func (i Issues) String() string {
	parts := make([]string, 0, len(i))
	for _, field := range i.Fields() {
		parts = append(parts, fmt.Sprintf("%s: %s", field, i[field]))
	}
	return strings.Join(parts, "; ")
}

// Validator checks drafts against the submission policy and renders
// Traditional Chinese messages.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// NewValidator wires the validator, its zh_Hant_TW translator and the
// order-number length rule.
func NewValidator() (*Validator, error) {
	locale := zh_Hant_TW.New()
	uni := ut.New(locale, locale)
	trans, found := uni.GetTranslator(locale.Locale())
	if !found {
		return nil, fmt.Errorf("form: translator %s not found", locale.Locale())
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if label := fld.Tag.Get("label"); label != "" {
			return label
		}
		return fld.Name
	})
	if err := validate.RegisterValidation("utf16len", validateUTF16Len); err != nil {
		return nil, fmt.Errorf("form: register utf16len: %w", err)
	}
	if err := zhtw.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("form: register translations: %w", err)
	}
	custom := map[string]string{
		"utf16len":    "{0}需為{1}碼",
		"required_if": "{0}為必填欄位",
	}
	for tag, text := range custom {
		if err := validate.RegisterTranslation(tag, trans, addTranslation(tag, text), translateWithParam); err != nil {
			return nil, fmt.Errorf("form: register %s translation: %w", tag, err)
		}
	}
	return &Validator{validate: validate, trans: trans}, nil
}

var (
	sharedValidator     *Validator
	sharedValidatorOnce sync.Once
)

func defaultValidator() *Validator {
	sharedValidatorOnce.Do(func() {
		v, err := NewValidator()
		if err != nil {
			panic(err)
		}
		sharedValidator = v
	})
	return sharedValidator
}

// Check returns nil when rec may be submitted.
func (v *Validator) Check(rec inspection.Record) Issues {
	err := v.validate.Struct(submissionOf(rec))
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Issues{"": err.Error()}
	}
	issues := Issues{}
	structType := reflect.TypeOf(submission{})
	for _, fe := range fieldErrs {
		name := fe.StructField()
		if sf, ok := structType.FieldByName(fe.StructField()); ok {
			if tag := sf.Tag.Get("field"); tag != "" {
				name = tag
			}
		}
		if _, seen := issues[name]; !seen {
			issues[name] = fe.Translate(v.trans)
		}
	}
	return issues
}

func validateUTF16Len(fl validator.FieldLevel) bool {
	want, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return inspection.UnitLength(fl.Field().String()) == want
}

func addTranslation(tag, text string) validator.RegisterTranslationsFunc {
	return func(trans ut.Translator) error {
		return trans.Add(tag, text, true)
	}
}

func translateWithParam(trans ut.Translator, fe validator.FieldError) string {
	msg, err := trans.T(fe.Tag(), fe.Field(), fe.Param())
	if err != nil {
		return fe.Error()
	}
	return msg
}
