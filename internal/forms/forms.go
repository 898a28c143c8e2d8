// Package forms holds the ordered validation rules for the account forms.
// Every rule runs, and failures come back in declaration order.
package forms

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const MinPasswordLength = 6

// Column widths of usuarios.nombre and usuarios.email, in characters.
const (
	MaxNameLength  = 60
	MaxEmailLength = 255
)

const (
	FieldName           = "nombre"
	FieldEmail          = "email"
	FieldPassword       = "password"
	FieldRepeatPassword = "repite_password"
)

const (
	MsgNameRequired     = "El Nombre no puede ir vacio"
	MsgNameTooLong      = "El Nombre no puede tener más de 60 caracteres"
	MsgEmailTooLong     = "El Email no puede tener más de 255 caracteres"
	MsgEmailInvalid     = "Eso no parece un email"
	MsgPasswordTooShort = "El Password debe ser de al menos 6 caracteres"
	MsgPasswordMismatch = "Los Passwords no son iguales"

	MsgEmailRequired    = "El Email es Obligatorio"
	MsgPasswordRequired = "El Password es Obligatorio"
)

// Values are the submitted form fields, keyed by input name.
type Values map[string]string

func (v Values) Get(field string) string {
	return v[field]
}

type Rule struct {
	Field   string
	Message string
	Check   func(Values) bool
}

type FieldError struct {
	Field   string
	Message string
}

type Errors []FieldError

func (e Errors) OK() bool {
	return len(e) == 0
}

// ByField keeps the first message per field.
func (e Errors) ByField() map[string]string {
	out := make(map[string]string, len(e))
	for _, fe := range e {
		if _, ok := out[fe.Field]; !ok {
			out[fe.Field] = fe.Message
		}
	}
	return out
}

func Validate(values Values, rules []Rule) Errors {
	var errs Errors

	for _, r := range rules {
		if !r.Check(values) {
			errs = append(errs, FieldError{Field: r.Field, Message: r.Message})
		}
	}

	return errs
}

var validate = validator.New()

func NotEmpty(field string) func(Values) bool {
	return func(v Values) bool {
		return strings.TrimSpace(v.Get(field)) != ""
	}
}

func IsEmail(field string) func(Values) bool {
	return func(v Values) bool {
		s := strings.TrimSpace(v.Get(field))
		if s == "" {
			return false
		}
		return validate.Var(s, "email") == nil
	}
}

// MinLength counts characters, not bytes.
func MinLength(field string, n int) func(Values) bool {
	return func(v Values) bool {
		return utf8.RuneCountInString(v.Get(field)) >= n
	}
}

func MaxLength(field string, n int) func(Values) bool {
	return func(v Values) bool {
		return utf8.RuneCountInString(v.Get(field)) <= n
	}
}

func Equals(field, other string) func(Values) bool {
	return func(v Values) bool {
		return v.Get(field) == v.Get(other)
	}
}

func RegisterRules() []Rule {
	return []Rule{
		{Field: FieldName, Message: MsgNameRequired, Check: NotEmpty(FieldName)},
		{Field: FieldName, Message: MsgNameTooLong, Check: MaxLength(FieldName, MaxNameLength)},
		{Field: FieldEmail, Message: MsgEmailInvalid, Check: IsEmail(FieldEmail)},
		{Field: FieldEmail, Message: MsgEmailTooLong, Check: MaxLength(FieldEmail, MaxEmailLength)},
		{Field: FieldPassword, Message: MsgPasswordTooShort, Check: MinLength(FieldPassword, MinPasswordLength)},
		{Field: FieldRepeatPassword, Message: MsgPasswordMismatch, Check: Equals(FieldRepeatPassword, FieldPassword)},
	}
}

func ResetRequestRules() []Rule {
	return []Rule{
		{Field: FieldEmail, Message: MsgEmailInvalid, Check: IsEmail(FieldEmail)},
	}
}

func NewPasswordRules() []Rule {
	return []Rule{
		{Field: FieldPassword, Message: MsgPasswordTooShort, Check: MinLength(FieldPassword, MinPasswordLength)},
	}
}

func LoginRules() []Rule {
	return []Rule{
		{Field: FieldEmail, Message: MsgEmailRequired, Check: IsEmail(FieldEmail)},
		{Field: FieldPassword, Message: MsgPasswordRequired, Check: NotEmpty(FieldPassword)},
	}
}
