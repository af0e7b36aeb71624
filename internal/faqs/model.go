// Package faqs manages the curated FAQ entries served to the support UI.
package faqs

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrFAQNotFound is returned for unknown or soft-deleted entries.
var ErrFAQNotFound = errors.New("faq not found")

type Category string

const (
	CategoryOrders   Category = "orders"
	CategoryShipping Category = "shipping"
	CategoryReturns  Category = "returns"
	CategoryRefunds  Category = "refunds"
	CategoryProducts Category = "products"
	CategoryPayments Category = "payments"
	CategoryAccount  Category = "account"
	CategoryGeneral  Category = "general"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryOrders,
	CategoryShipping,
	CategoryReturns,
	CategoryRefunds,
	CategoryProducts,
	CategoryPayments,
	CategoryAccount,
	CategoryGeneral,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// DisplayName turns "out_of_stock" style names into "Out Of Stock".
func (c Category) DisplayName() string {
	words := strings.Fields(strings.ReplaceAll(string(c), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

const (
	minQuestionLen = 10
	maxQuestionLen = 500
	minAnswerLen   = 10
	maxAnswerLen   = 5000
	maxPriority    = 100
)

// FAQ is a stored question/answer pair.
type FAQ struct {
	ID           string     `json:"id"`
	Question     string     `json:"question"`
	Answer       string     `json:"answer"`
	Category     Category   `json:"category"`
	Keywords     []string   `json:"keywords"`
	Priority     int        `json:"priority"`
	IsActive     bool       `json:"is_active"`
	ViewCount    int        `json:"view_count"`
	HelpfulCount int        `json:"helpful_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// Matches reports whether term appears in the question, the answer or a
// keyword, ignoring case.
func (f FAQ) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(f.Question), term) || strings.Contains(strings.ToLower(f.Answer), term) {
		return true
	}
	for _, kw := range f.Keywords {
		if strings.Contains(strings.ToLower(kw), term) {
			return true
		}
	}
	return false
}

// ValidationError reports a rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CreateInput is the body of POST /faqs.
type CreateInput struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Category Category `json:"category"`
	Keywords []string `json:"keywords"`
	Priority int      `json:"priority"`
}

func (in CreateInput) Validate() error {
	if err := validateLength("question", in.Question, minQuestionLen, maxQuestionLen); err != nil {
		return err
	}
	if err := validateLength("answer", in.Answer, minAnswerLen, maxAnswerLen); err != nil {
		return err
	}
	if !in.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", in.Category)}
	}
	return validatePriority(in.Priority)
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Question *string   `json:"question,omitempty"`
	Answer   *string   `json:"answer,omitempty"`
	Category *Category `json:"category,omitempty"`
	Keywords *[]string `json:"keywords,omitempty"`
	Priority *int      `json:"priority,omitempty"`
	IsActive *bool     `json:"is_active,omitempty"`
}

func (in UpdateInput) Validate() error {
	if in.Question != nil {
		if err := validateLength("question", *in.Question, minQuestionLen, maxQuestionLen); err != nil {
			return err
		}
	}
	if in.Answer != nil {
		if err := validateLength("answer", *in.Answer, minAnswerLen, maxAnswerLen); err != nil {
			return err
		}
	}
	if in.Category != nil && !in.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", *in.Category)}
	}
	if in.Priority != nil {
		return validatePriority(*in.Priority)
	}
	return nil
}

func (in UpdateInput) apply(f *FAQ) {
	if in.Question != nil {
		f.Question = *in.Question
	}
	if in.Answer != nil {
		f.Answer = *in.Answer
	}
	if in.Category != nil {
		f.Category = *in.Category
	}
	if in.Keywords != nil {
		f.Keywords = append([]string(nil), (*in.Keywords)...)
	}
	if in.Priority != nil {
		f.Priority = *in.Priority
	}
	if in.IsActive != nil {
		f.IsActive = *in.IsActive
	}
}

func validateLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be between %d and %d characters", min, max)}
	}
	return nil
}

func validatePriority(p int) error {
	if p < 0 || p > maxPriority {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("must be between 0 and %d", maxPriority)}
	}
	return nil
}

func newFAQID() string {
	return "faq_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
