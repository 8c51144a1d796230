// Package config holds the immutable description of offices and documents
// the simulation core runs against, and the YAML loader that builds one from
// disk. Loading configuration is external to the core (spec §1's non-goal
// list); the core only ever sees the already-constructed Configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anthropics/bureaucracy-sim/internal/simerr"
)

// OfficeSpec describes one office's capacity and break cadence.
type OfficeSpec struct {
	Name          string
	Counters      int
	MinService    time.Duration
	MaxService    time.Duration
	BreakDuration time.Duration
}

// DocumentSpec describes one document: where it is issued and, in declared
// order, what it depends on.
type DocumentSpec struct {
	Name          string
	IssuingOffice string
	Dependencies  []string
}

// Customer describes one applicant for the CLI's zero-config sample run.
type Customer struct {
	CustomerID         string
	RequestedDocuments []string
}

// Configuration is the immutable, O(1)-lookup description of every office
// and document in the running system.
type Configuration struct {
	offices   map[string]OfficeSpec
	documents map[string]DocumentSpec
}

// New builds a Configuration from office and document lists, rejecting
// duplicate names, dangling references, and cyclic dependencies.
func New(offices []OfficeSpec, documents []DocumentSpec) (*Configuration, error) {
	officeByName := make(map[string]OfficeSpec, len(offices))
	for _, o := range offices {
		if o.Counters <= 0 {
			return nil, simerr.NewConfigInvalid(fmt.Sprintf("office %q: counters must be > 0", o.Name))
		}
		if o.MaxService < o.MinService {
			return nil, simerr.NewConfigInvalid(fmt.Sprintf("office %q: maxService must be >= minService", o.Name))
		}
		if _, dup := officeByName[o.Name]; dup {
			return nil, simerr.NewConfigInvalid(fmt.Sprintf("duplicate office name %q", o.Name))
		}
		officeByName[o.Name] = o
	}

	documentByName := make(map[string]DocumentSpec, len(documents))
	for _, d := range documents {
		if _, dup := documentByName[d.Name]; dup {
			return nil, simerr.NewConfigInvalid(fmt.Sprintf("duplicate document name %q", d.Name))
		}
		if _, ok := officeByName[d.IssuingOffice]; !ok {
			return nil, simerr.NewConfigInvalid(fmt.Sprintf("document %q: unknown issuing office %q", d.Name, d.IssuingOffice))
		}
		documentByName[d.Name] = d
	}

	for _, d := range documents {
		for _, dep := range d.Dependencies {
			if _, ok := documentByName[dep]; !ok {
				return nil, simerr.NewConfigInvalid(fmt.Sprintf("document %q: unknown dependency %q", d.Name, dep))
			}
		}
	}

	if cycle := findCycle(documentByName); cycle != nil {
		return nil, simerr.NewConfigInvalid(fmt.Sprintf("cyclic document dependency: %v", cycle))
	}

	return &Configuration{offices: officeByName, documents: documentByName}, nil
}

// Office looks up an office by name in O(1).
func (c *Configuration) Office(name string) (OfficeSpec, bool) {
	o, ok := c.offices[name]
	return o, ok
}

// Document looks up a document by name in O(1).
func (c *Configuration) Document(name string) (DocumentSpec, bool) {
	d, ok := c.documents[name]
	return d, ok
}

// Offices returns every office spec, in no particular order.
func (c *Configuration) Offices() []OfficeSpec {
	out := make([]OfficeSpec, 0, len(c.offices))
	for _, o := range c.offices {
		out = append(out, o)
	}
	return out
}

// Documents returns every document spec, in no particular order.
func (c *Configuration) Documents() []DocumentSpec {
	out := make([]DocumentSpec, 0, len(c.documents))
	for _, d := range c.documents {
		out = append(out, d)
	}
	return out
}

// findCycle runs a depth-first topological sort over the doc -> deps graph
// and returns the first cycle found, or nil if the graph is acyclic.
func findCycle(documents map[string]DocumentSpec) []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(documents))
	var path []string

	var visit func(name string) []string
	visit = func(name string) []string {
		switch state[name] {
		case done:
			return nil
		case visiting:
			for i, n := range path {
				if n == name {
					return append(append([]string{}, path[i:]...), name)
				}
			}
			return []string{name}
		}

		state[name] = visiting
		path = append(path, name)
		for _, dep := range documents[name].Dependencies {
			if cyc := visit(dep); cyc != nil {
				return cyc
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}

	for name := range documents {
		if state[name] == unvisited {
			if cyc := visit(name); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}

// yamlDoc mirrors the on-disk configuration format described in
// SPEC_FULL.md §4.8.
type yamlDoc struct {
	Offices []struct {
		Name         string `yaml:"name"`
		Counters     int    `yaml:"counters"`
		MinServiceMs int64  `yaml:"minServiceMs"`
		MaxServiceMs int64  `yaml:"maxServiceMs"`
		BreakMs      int64  `yaml:"breakMs"`
	} `yaml:"offices"`
	Documents []struct {
		Name          string   `yaml:"name"`
		IssuingOffice string   `yaml:"issuingOffice"`
		Dependencies  []string `yaml:"dependencies"`
	} `yaml:"documents"`
}

// LoadFile reads a YAML configuration document from path and builds a
// Configuration from it.
func LoadFile(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	offices := make([]OfficeSpec, 0, len(doc.Offices))
	for _, o := range doc.Offices {
		offices = append(offices, OfficeSpec{
			Name:          o.Name,
			Counters:      o.Counters,
			MinService:    time.Duration(o.MinServiceMs) * time.Millisecond,
			MaxService:    time.Duration(o.MaxServiceMs) * time.Millisecond,
			BreakDuration: time.Duration(o.BreakMs) * time.Millisecond,
		})
	}

	documents := make([]DocumentSpec, 0, len(doc.Documents))
	for _, d := range doc.Documents {
		documents = append(documents, DocumentSpec{
			Name:          d.Name,
			IssuingOffice: d.IssuingOffice,
			Dependencies:  d.Dependencies,
		})
	}

	return New(offices, documents)
}

// Sample reproduces the Romanian public-office fixture from the original
// bureaucracy simulation, used as the CLI's zero-config default.
func Sample() *Configuration {
	offices := []OfficeSpec{
		{Name: "Directia Evidenta Populatiei", Counters: 3, MinService: 400 * time.Millisecond, MaxService: 900 * time.Millisecond, BreakDuration: 3 * time.Second},
		{Name: "Administratia Fiscala Sector 1", Counters: 3, MinService: 450 * time.Millisecond, MaxService: 1000 * time.Millisecond, BreakDuration: 4 * time.Second},
		{Name: "Primaria Municipiului Bucuresti", Counters: 3, MinService: 500 * time.Millisecond, MaxService: 1100 * time.Millisecond, BreakDuration: 5 * time.Second},
		{Name: "Casa Nationala de Asigurari", Counters: 2, MinService: 400 * time.Millisecond, MaxService: 900 * time.Millisecond, BreakDuration: 3 * time.Second},
	}

	documents := []DocumentSpec{
		{Name: "CERERE_CI", IssuingOffice: "Directia Evidenta Populatiei"},
		{Name: "CARTE_IDENTITATE", IssuingOffice: "Directia Evidenta Populatiei", Dependencies: []string{"CERERE_CI"}},
		{Name: "NUMAR_FISCAL", IssuingOffice: "Administratia Fiscala Sector 1", Dependencies: []string{"CARTE_IDENTITATE"}},
		{Name: "CERTIFICAT_FISCAL", IssuingOffice: "Administratia Fiscala Sector 1", Dependencies: []string{"NUMAR_FISCAL"}},
		{Name: "CARD_SANATATE", IssuingOffice: "Casa Nationala de Asigurari", Dependencies: []string{"CARTE_IDENTITATE"}},
		{Name: "ADEVERINTA_DOMICILIU", IssuingOffice: "Primaria Municipiului Bucuresti", Dependencies: []string{"CARTE_IDENTITATE", "CERTIFICAT_FISCAL"}},
		{Name: "AVIZ_AFACERI", IssuingOffice: "Primaria Municipiului Bucuresti", Dependencies: []string{"ADEVERINTA_DOMICILIU", "CERTIFICAT_FISCAL", "CARD_SANATATE"}},
	}

	cfg, err := New(offices, documents)
	if err != nil {
		// The fixture is fixed at compile time and known acyclic.
		panic(err)
	}
	return cfg
}

// SampleCustomers reproduces the customer list from the original
// bureaucracy simulation's entry point.
func SampleCustomers() []Customer {
	return []Customer{
		{CustomerID: "Mihai", RequestedDocuments: []string{"AVIZ_AFACERI"}},
		{CustomerID: "Ioana", RequestedDocuments: []string{"ADEVERINTA_DOMICILIU"}},
		{CustomerID: "Andrei", RequestedDocuments: []string{"CERTIFICAT_FISCAL", "CARD_SANATATE"}},
		{CustomerID: "Sorina", RequestedDocuments: []string{"CARTE_IDENTITATE"}},
		{CustomerID: "Vlad", RequestedDocuments: []string{"AVIZ_AFACERI"}},
	}
}
