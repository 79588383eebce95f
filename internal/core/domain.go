package core

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	MinAge            = 1
	MaxAge            = 150
	MinorAgeThreshold = 18

	PersonNameMinLen             = 3
	PersonNameMaxLen             = 200
	CategoryDescriptionMaxLen    = 200
	TransactionDescriptionMaxLen = 500
	dateLayout                   = "2006-01-02"
)

// TransactionType is the direction of a transaction. The integer values are
// part of the wire contract.
type TransactionType int

const (
	TypeExpense TransactionType = 0
	TypeIncome  TransactionType = 1
)

// Purpose declares which transaction types a category accepts. The integer
// values are part of the wire contract.
type Purpose int

const (
	PurposeExpense Purpose = 0
	PurposeIncome  Purpose = 1
	PurposeBoth    Purpose = 2
)

type (
	Date struct {
		time.Time
	}

	Person struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	Category struct {
		ID          int64   `json:"id"`
		Description string  `json:"description"`
		Purpose     Purpose `json:"purpose"`
	}

	Transaction struct {
		ID          int64           `json:"id"`
		Description string          `json:"description"`
		Amount      Money           `json:"amount"`
		Date        Date            `json:"date"`
		Type        TransactionType `json:"type"`
		PersonID    int64           `json:"personId"`
		CategoryID  int64           `json:"categoryId"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	// TransactionDetail is a transaction joined with the display fields of
	// its person and category.
	TransactionDetail struct {
		Transaction
		PersonName          string `json:"personName"`
		CategoryDescription string `json:"categoryDescription"`
	}
)

// Valid reports whether t is one of the declared transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeExpense, TypeIncome:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string {
	switch t {
	case TypeExpense:
		return "Expense"
	case TypeIncome:
		return "Income"
	default:
		return "Unknown"
	}
}

// Valid reports whether p is one of the declared purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeExpense, PurposeIncome, PurposeBoth:
		return true
	default:
		return false
	}
}

// Label returns the human readable purpose name used in reports.
func (p Purpose) Label() string {
	switch p {
	case PurposeExpense:
		return "Expense"
	case PurposeIncome:
		return "Income"
	case PurposeBoth:
		return "Both"
	default:
		return "Unknown"
	}
}

func (p Purpose) String() string {
	return p.Label()
}

// IsCompatible reports whether a category with purpose p may be used for a
// transaction of type t. This is the only place the pairing rule lives.
func (p Purpose) IsCompatible(t TransactionType) bool {
	switch p {
	case PurposeBoth:
		return t.Valid()
	case PurposeExpense:
		return t == TypeExpense
	case PurposeIncome:
		return t == TypeIncome
	default:
		return false
	}
}

// IsMinor is derived from Age on every call and never stored.
func (p Person) IsMinor() bool {
	return p.Age < MinorAgeThreshold
}

func (p Person) MarshalJSON() ([]byte, error) {
	type person Person
	return json.Marshal(struct {
		person
		IsMinor bool `json:"isMinor"`
	}{person(p), p.IsMinor()})
}

// NormalizeName trims s, splits it on whitespace, lowercases every token,
// uppercases the first letter of each token and joins them with single
// spaces. "  joão   SILVA " becomes "João Silva".
func NormalizeName(s string) string {
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		lower := strings.ToLower(tok)
		r, size := utf8.DecodeRuneInString(lower)
		tokens[i] = string(unicode.ToUpper(r)) + lower[size:]
	}
	return strings.Join(tokens, " ")
}

// FoldKey is the case-insensitive key used for uniqueness of person names
// and category descriptions.
func FoldKey(s string) string {
	return strings.ToLower(s)
}

// ValidateAge checks the [MinAge, MaxAge] range.
func ValidateAge(age int) error {
	if age < MinAge || age > MaxAge {
		return Validation("age", fmt.Sprintf("age must be between %d and %d, got %d", MinAge, MaxAge, age))
	}
	return nil
}

// ValidatePersonName normalizes name and checks its length. The normalized
// form is returned on success.
func ValidatePersonName(name string) (string, error) {
	normalized := NormalizeName(name)
	if normalized == "" {
		return "", Validation("name", "name is required")
	}
	n := utf8.RuneCountInString(normalized)
	if n < PersonNameMinLen || n > PersonNameMaxLen {
		return "", Validation("name", fmt.Sprintf("name must be between %d and %d characters", PersonNameMinLen, PersonNameMaxLen))
	}
	return normalized, nil
}

// ValidateCategoryDescription trims desc and checks it is present and short
// enough.
func ValidateCategoryDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return "", Validation("description", "description is required")
	}
	if utf8.RuneCountInString(desc) > CategoryDescriptionMaxLen {
		return "", Validation("description", fmt.Sprintf("description too long (max %d characters)", CategoryDescriptionMaxLen))
	}
	return desc, nil
}

// ValidateTransactionDescription trims desc and checks it is present and
// short enough.
func ValidateTransactionDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return "", Validation("description", "description is required")
	}
	if utf8.RuneCountInString(desc) > TransactionDescriptionMaxLen {
		return "", Validation("description", fmt.Sprintf("description too long (max %d characters)", TransactionDescriptionMaxLen))
	}
	return desc, nil
}

// ValidateAmount rejects zero, negative and out of range amounts.
func ValidateAmount(m Money) error {
	if !m.IsPositive() {
		return Validation("amount", fmt.Sprintf("amount must be greater than zero, got %s", m))
	}
	if m.Cmp(MaxAmount) > 0 {
		return Validation("amount", fmt.Sprintf("amount must not exceed %s, got %s", MaxAmount, m))
	}
	return nil
}

// ValidateTransactionType rejects values outside the closed set.
func ValidateTransactionType(t TransactionType) error {
	if !t.Valid() {
		return Validation("type", fmt.Sprintf("type must be %d (Expense) or %d (Income), got %d", TypeExpense, TypeIncome, t))
	}
	return nil
}

// ValidatePurpose rejects values outside the closed set.
func ValidatePurpose(p Purpose) error {
	if !p.Valid() {
		return Validation("purpose", fmt.Sprintf("purpose must be %d (Expense), %d (Income) or %d (Both), got %d", PurposeExpense, PurposeIncome, PurposeBoth, p))
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ErrInvalidDate is returned when a date is not a valid YYYY-MM-DD string.
var ErrInvalidDate = errors.New("invalid date")

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q: must be YYYY-MM-DD", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return Validation("date", "date is required")
	}
	return nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: must be a YYYY-MM-DD string", ErrInvalidDate)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as YYYY-MM-DD text on every SQL dialect.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v.Year(), int(v.Month()), v.Day())
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
