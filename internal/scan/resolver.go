// Package scan turns scanned label strings into resource ids or borrower
// references.
//
// Accepted forms:
//
//	book:B-100  or BOOK-ID:B-100   resource id
//	student:S1                     student borrower
//	teacher:T9                     teacher borrower
//	Class/Subject/Form/Count/Year  book label; the whole label is the
//	                               resource id and the parts become tags
//	[Form/]LKR/Colour/Seq          furniture label, likewise (LKR or CHR)
//	B-100                          bare resource id
//
// Resource ids follow inventory.CheckResourceID, so anything the catalog
// accepts can be scanned back.
package scan

import (
	"fmt"
	"strings"

	"lendkeeper/internal/inventory"
)

// Kind says what a code resolved to.
type Kind string

const (
	KindResource Kind = "resource"
	KindBorrower Kind = "borrower"
)

// Target is a resolved code.
type Target struct {
	Kind       Kind                  `json:"kind"`
	ResourceID string                `json:"resource_id,omitempty"`
	Borrower   inventory.BorrowerRef `json:"borrower,omitempty"`
	// Label carries the tags decoded from a structured id.
	Label inventory.Label `json:"label,omitempty"`
}

// Resolver parses scanned codes.
type Resolver struct {
	prefixes map[string]func(string) (Target, error)
}

// NewResolver returns a resolver for the standard prefixes.
func NewResolver() *Resolver {
	r := &Resolver{}
	r.prefixes = map[string]func(string) (Target, error){
		"book":    resourceTarget,
		"book-id": resourceTarget,
		"student": borrowerTarget(inventory.BorrowerStudent),
		"teacher": borrowerTarget(inventory.BorrowerTeacher),
	}
	return r
}

// Resolve parses one code.
func (r *Resolver) Resolve(code string) (Target, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Target{}, invalid("empty scan code")
	}
	if prefix, rest, ok := strings.Cut(code, ":"); ok {
		if fn, known := r.prefixes[strings.ToLower(strings.TrimSpace(prefix))]; known {
			return fn(strings.TrimSpace(rest))
		}
		return Target{}, invalid("unknown scan prefix %q", prefix)
	}
	return resourceTarget(code)
}

// ResolveResource resolves code and requires it to name a resource.
func (r *Resolver) ResolveResource(code string) (string, error) {
	t, err := r.Resolve(code)
	if err != nil {
		return "", err
	}
	if t.Kind != KindResource {
		return "", invalid("%q is a borrower code, expected a resource", code)
	}
	return t.ResourceID, nil
}

// ResolveBorrower resolves code and requires it to name a borrower.
func (r *Resolver) ResolveBorrower(code string) (inventory.BorrowerRef, error) {
	t, err := r.Resolve(code)
	if err != nil {
		return inventory.BorrowerRef{}, err
	}
	if t.Kind != KindBorrower {
		return inventory.BorrowerRef{}, invalid("%q is a resource code, expected a borrower", code)
	}
	return t.Borrower, nil
}

func resourceTarget(id string) (Target, error) {
	if strings.Contains(id, "/") {
		return labelTarget(id)
	}
	if err := inventory.CheckResourceID(id); err != nil {
		return Target{}, err
	}
	return Target{Kind: KindResource, ResourceID: id}, nil
}

func borrowerTarget(kind inventory.BorrowerKind) func(string) (Target, error) {
	return func(id string) (Target, error) {
		if id == "" {
			return Target{}, invalid("%s code without an id", kind)
		}
		return Target{Kind: KindBorrower, Borrower: inventory.BorrowerRef{ID: id, Kind: kind}}, nil
	}
}

// labelTarget accepts loosely written labels ("LKR/R/7") and resolves them to
// the canonical id the catalog stores.
func labelTarget(code string) (Target, error) {
	label, err := inventory.ParseLabel(code)
	if err != nil {
		return Target{}, err
	}
	return Target{Kind: KindResource, ResourceID: label.String(), Label: label}, nil
}

func invalid(format string, args ...any) error {
	return &inventory.Error{Kind: inventory.KindValidation, Message: fmt.Sprintf(format, args...)}
}
