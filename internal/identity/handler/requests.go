package handler

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/nyaruka/phonenumbers"

	"laundry-service/backend/internal/apperr"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,19}$`)

type emailRequest struct {
	Email string `json:"email"`
}

func (r emailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
	)
}

// verifyRequest accepts the typed code or the digest from the emailed link.
type verifyRequest struct {
	Code  string `json:"code"`
	Token string `json:"token"`
}

func (r verifyRequest) Validate() error {
	codeRules := []validation.Rule{validation.Length(6, 6), is.Digit}
	if r.Token == "" {
		codeRules = append([]validation.Rule{validation.Required}, codeRules...)
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, codeRules...),
		validation.Field(&r.Token, validation.Length(64, 64), is.Hexadecimal),
	)
}

func (r verifyRequest) submitted() string {
	if r.Code != "" {
		return r.Code
	}
	return r.Token
}

type completeRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

func (r completeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 72)),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Phone, validation.Match(phonePattern).Error("must be a valid phone number")),
	)
}

// normalizePhone rewrites international numbers to E.164. Anything phonenumbers cannot place
// is kept as typed.
func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if !strings.HasPrefix(phone, "+") {
		return phone
	}
	num, err := phonenumbers.Parse(phone, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return phone
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// bind parses the JSON body into req and validates it. Failures are 400 with the offending fields.
func bind(c *fiber.Ctx, req validation.Validatable) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return apperr.Validation("Invalid JSON payload")
		}
	}
	if err := req.Validate(); err != nil {
		var errs validation.Errors
		if errors.As(err, &errs) {
			fields := make([]string, 0, len(errs))
			for f := range errs {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			return apperr.Validation(strings.TrimSuffix(errs.Error(), "."), fields...)
		}
		return apperr.Validation(err.Error())
	}
	return nil
}
