package config

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Department is a chat room that requires a shared password to enter
type Department struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

// Departments is the directory of joinable departments
type Departments struct {
	byName map[string]string
}

type departmentsFile struct {
	Departments []Department `yaml:"departments"`
}

// DefaultDepartments is used when no departments file is configured
func DefaultDepartments() *Departments {
	return NewDepartments([]Department{
		{Name: "총무팀", Password: "1111"},
		{Name: "인사팀", Password: "2222"},
		{Name: "회계팀", Password: "3333"},
	})
}

// NewDepartments builds a directory from a list; later entries win on duplicate names
func NewDepartments(list []Department) *Departments {
	d := &Departments{byName: make(map[string]string, len(list))}
	for _, dep := range list {
		d.byName[dep.Name] = dep.Password
	}
	return d
}

// LoadDepartmentsFile reads a YAML department directory
func LoadDepartmentsFile(path string) (*Departments, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading departments file: %w", err)
	}
	return ParseDepartments(data)
}

// ParseDepartments decodes a YAML department directory
func ParseDepartments(data []byte) (*Departments, error) {
	var f departmentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing departments file: %w", err)
	}
	if len(f.Departments) == 0 {
		return nil, errors.New("departments file lists no departments")
	}
	for i, dep := range f.Departments {
		if dep.Name == "" || dep.Password == "" {
			return nil, fmt.Errorf("department #%d needs both name and password", i+1)
		}
	}
	return NewDepartments(f.Departments), nil
}

// Verify reports whether password opens the named department
func (d *Departments) Verify(name, password string) bool {
	want, ok := d.byName[name]
	if !ok || password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1
}

// Names lists the departments, sorted
func (d *Departments) Names() []string {
	names := make([]string, 0, len(d.byName))
	for name := range d.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
