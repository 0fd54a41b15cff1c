package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"lendkeeper/internal/analytics"
	"lendkeeper/internal/inventory"
)

// TeachersCohort is the cohort id under which teachers are reported.
const TeachersCohort = "teachers"

// Person is a roster entry.
type Person struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name,omitempty"`
}

// CohortEntry is a roster cohort of students.
type CohortEntry struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name,omitempty"`
	Students []Person `yaml:"students"`
}

type document struct {
	Cohorts  []CohortEntry `yaml:"cohorts"`
	Teachers []Person      `yaml:"teachers"`
}

// Roster is an immutable, loaded roster.
type Roster struct {
	cohorts  []analytics.Cohort
	cohortOf map[inventory.BorrowerRef]string
	names    map[inventory.BorrowerRef]string
}

// LoadFile reads a YAML roster from path.
func LoadFile(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	roster, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return roster, nil
}

// Parse decodes a YAML roster. Unknown keys, blank ids and ids listed twice
// are rejected.
func Parse(r io.Reader) (*Roster, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode roster: %w", err)
	}

	roster := &Roster{
		cohortOf: make(map[inventory.BorrowerRef]string),
		names:    make(map[inventory.BorrowerRef]string),
	}
	seenCohorts := make(map[string]bool)
	add := func(cohortID string, kind inventory.BorrowerKind, p Person) (inventory.BorrowerRef, error) {
		ref := inventory.BorrowerRef{ID: strings.TrimSpace(p.ID), Kind: kind}
		if ref.ID == "" {
			return ref, fmt.Errorf("cohort %q: %s with empty id", cohortID, kind)
		}
		if prev, dup := roster.cohortOf[ref]; dup {
			return ref, fmt.Errorf("%s listed in both %q and %q", ref, prev, cohortID)
		}
		roster.cohortOf[ref] = cohortID
		roster.names[ref] = strings.TrimSpace(p.Name)
		return ref, nil
	}

	for _, entry := range doc.Cohorts {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return nil, errors.New("cohort with empty id")
		}
		if id == TeachersCohort || seenCohorts[id] {
			return nil, fmt.Errorf("duplicate or reserved cohort id %q", id)
		}
		seenCohorts[id] = true
		cohort := analytics.Cohort{ID: id, Name: strings.TrimSpace(entry.Name)}
		for _, student := range entry.Students {
			ref, err := add(id, inventory.BorrowerStudent, student)
			if err != nil {
				return nil, err
			}
			cohort.Members = append(cohort.Members, ref)
		}
		roster.cohorts = append(roster.cohorts, cohort)
	}

	if len(doc.Teachers) > 0 {
		staff := analytics.Cohort{ID: TeachersCohort, Name: "Teachers"}
		for _, teacher := range doc.Teachers {
			ref, err := add(TeachersCohort, inventory.BorrowerTeacher, teacher)
			if err != nil {
				return nil, err
			}
			staff.Members = append(staff.Members, ref)
		}
		roster.cohorts = append(roster.cohorts, staff)
	}
	return roster, nil
}

// Exists reports whether ref is on the roster.
func (r *Roster) Exists(_ context.Context, ref inventory.BorrowerRef) (bool, error) {
	_, ok := r.cohortOf[ref]
	return ok, nil
}

// Cohorts returns every cohort in roster order, teachers last.
func (r *Roster) Cohorts(context.Context) ([]analytics.Cohort, error) {
	out := make([]analytics.Cohort, len(r.cohorts))
	for i, c := range r.cohorts {
		c.Members = append([]inventory.BorrowerRef(nil), c.Members...)
		out[i] = c
	}
	return out, nil
}

// CohortOf returns the cohort holding ref.
func (r *Roster) CohortOf(_ context.Context, ref inventory.BorrowerRef) (string, bool, error) {
	id, ok := r.cohortOf[ref]
	return id, ok, nil
}

// Name returns the display name recorded for ref, if any.
func (r *Roster) Name(ref inventory.BorrowerRef) string {
	return r.names[ref]
}

var (
	_ inventory.BorrowerRegistry = (*Roster)(nil)
	_ analytics.CohortSource     = (*Roster)(nil)
)
