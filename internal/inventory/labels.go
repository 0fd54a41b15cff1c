package inventory

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// MaxResourceIDLength bounds every resource id, plain or structured.
const MaxResourceIDLength = 64

// Label is a structured resource id whose segments carry classification tags.
type Label interface {
	String() string
	Classification() Classification
}

// BookLabel is a Class/Subject/Form/Count/Year shelf label.
type BookLabel struct {
	Class   string `json:"class"`
	Subject string `json:"subject"`
	Form    string `json:"form"`
	Copies  int    `json:"copies"`
	Year    int    `json:"year"`
}

func (l BookLabel) String() string {
	return strings.Join([]string{l.Class, l.Subject, l.Form, strconv.Itoa(l.Copies), strconv.Itoa(l.Year)}, "/")
}

// Classification maps the label onto catalog tags.
func (l BookLabel) Classification() Classification {
	return Classification{Category: l.Class, Subject: l.Subject, ClassLevel: l.Form}
}

// FurnitureKind is the series code of a furniture label.
type FurnitureKind string

const (
	FurnitureLocker FurnitureKind = "LKR"
	FurnitureChair  FurnitureKind = "CHR"
)

// ParseFurnitureKind accepts LKR or CHR in any case.
func ParseFurnitureKind(value string) (FurnitureKind, error) {
	k := FurnitureKind(strings.ToUpper(strings.TrimSpace(value)))
	switch k {
	case FurnitureLocker, FurnitureChair:
		return k, nil
	}
	return "", newError(KindValidation, fmt.Sprintf("unknown furniture kind %q (want LKR or CHR)", value))
}

// Category is the furniture_category tag recorded for the kind.
func (k FurnitureKind) Category() string {
	if k == FurnitureLocker {
		return "locker"
	}
	return "chair"
}

// FurnitureLabel is a [Form/]Kind/Colour/Seq label such as F1/LKR/R/007.
type FurnitureLabel struct {
	Form   string        `json:"form,omitempty"`
	Kind   FurnitureKind `json:"kind"`
	Colour string        `json:"colour"`
	Seq    int           `json:"seq"`
}

// Prefix is the label without its sequence number, ending in "/".
func (l FurnitureLabel) Prefix() string {
	if l.Form == "" {
		return fmt.Sprintf("%s/%s/", l.Kind, l.Colour)
	}
	return fmt.Sprintf("%s/%s/%s/", l.Form, l.Kind, l.Colour)
}

func (l FurnitureLabel) String() string {
	return fmt.Sprintf("%s%03d", l.Prefix(), l.Seq)
}

// Classification maps the label onto catalog tags.
func (l FurnitureLabel) Classification() Classification {
	return Classification{FurnitureCategory: l.Kind.Category(), ClassLevel: l.Form}
}

// ParseLabel decodes a structured id: five segments make a book label, three
// or four a furniture label.
func ParseLabel(code string) (Label, error) {
	parts := strings.Split(code, "/")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	var (
		label Label
		err   error
	)
	switch len(parts) {
	case 5:
		label, err = parseBookLabel(parts)
	case 3, 4:
		label, err = parseFurnitureLabel(parts)
	default:
		return nil, labelError("structured id needs Class/Subject/Form/Count/Year or [Form/]Kind/Colour/Seq, got %q", code)
	}
	if err != nil {
		return nil, err
	}
	if n := len(label.String()); n > MaxResourceIDLength {
		return nil, labelError("label %q exceeds %d characters", code, MaxResourceIDLength)
	}
	return label, nil
}

func parseBookLabel(parts []string) (BookLabel, error) {
	label := BookLabel{Class: parts[0], Subject: parts[1], Form: parts[2]}
	if len(label.Class) > 20 || !isAlnum(label.Class) {
		return BookLabel{}, labelError("label class must be 1-20 alphanumeric characters")
	}
	if label.Subject == "" || len(label.Subject) > 50 {
		return BookLabel{}, labelError("label subject must be 1-50 characters")
	}
	if label.Form == "" {
		return BookLabel{}, labelError("label form is required")
	}
	copies, err := strconv.Atoi(parts[3])
	if err != nil || copies <= 0 {
		return BookLabel{}, labelError("label copy count must be a positive integer")
	}
	year, err := strconv.Atoi(parts[4])
	if err != nil || year < 1900 || year > 9999 {
		return BookLabel{}, labelError("label year must be a four digit year")
	}
	label.Copies, label.Year = copies, year
	return label, nil
}

func parseFurnitureLabel(parts []string) (FurnitureLabel, error) {
	var label FurnitureLabel
	if len(parts) == 4 {
		label.Form, parts = parts[0], parts[1:]
		if len(label.Form) > 20 || !isAlnum(label.Form) {
			return FurnitureLabel{}, labelError("furniture form must be 1-20 alphanumeric characters")
		}
	}
	kind, err := ParseFurnitureKind(parts[0])
	if err != nil {
		return FurnitureLabel{}, err
	}
	label.Kind = kind
	label.Colour = parts[1]
	if len(label.Colour) > 10 || !isAlnum(label.Colour) {
		return FurnitureLabel{}, labelError("furniture colour must be 1-10 alphanumeric characters")
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil || seq <= 0 || seq > 999 {
		return FurnitureLabel{}, labelError("furniture sequence must be between 1 and 999")
	}
	label.Seq = seq
	return label, nil
}

// CheckResourceID enforces the one id rule shared by the catalog and the scan
// resolver. A plain id is 1-64 letters, digits, '-', '_' or '.'. An id
// containing '/' must be a structured label in canonical form.
func CheckResourceID(id string) error {
	if id == "" || len(id) > MaxResourceIDLength {
		return labelError("resource id must be 1-%d characters", MaxResourceIDLength)
	}
	if !strings.Contains(id, "/") {
		for _, r := range id {
			if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.') {
				return labelError("resource id may contain only letters, digits, '-', '_' and '.'")
			}
		}
		return nil
	}
	label, err := ParseLabel(id)
	if err != nil {
		return err
	}
	if canonical := label.String(); canonical != id {
		return labelError("structured id %q must be written as %q", id, canonical)
	}
	return nil
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

func labelError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}
