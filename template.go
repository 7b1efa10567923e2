package iocfixture

import "strings"

// Template is one database file loaded into the IOC at startup, with the
// macro substitutions applied to it. Templates are plain values: two
// templates are equal when their fields are.
type Template struct {
	// Path is the location of the database source
	Path string
	// Macros is the substitution string, e.g. "P=MY-DEVICE-NAME:,R=MY-SUFFIX:"
	Macros string
}

// Macro is a single NAME=VALUE substitution
type Macro struct {
	Name  string
	Value string
}

// NewTemplate creates a Template whose macro string is built from the given
// substitutions, in order
func NewTemplate(path string, macros ...Macro) Template {
	parts := make([]string, 0, len(macros))
	for _, m := range macros {
		parts = append(parts, m.Name+"="+m.Value)
	}
	return Template{Path: path, Macros: strings.Join(parts, ",")}
}

// String returns the template for log output
func (t Template) String() string {
	if t.Macros == "" {
		return t.Path
	}
	return t.Path + " (" + t.Macros + ")"
}

// Validate checks that the template names a database source
func (t Template) Validate() error {
	if t.Path == "" {
		return &OpError{Op: OpLaunch, Name: "template", Err: ErrEmptyTemplatePath}
	}
	return nil
}

// BuildArgs returns the IOC arguments for the templates, preserving their
// order: "-m <macros>" when a template has macros, then "-d <path>". Later
// templates may redefine records of earlier ones, following the IOC's own
// load order.
func BuildArgs(templates ...Template) []string {
	args := make([]string, 0, 4*len(templates))
	for _, t := range templates {
		if t.Macros != "" {
			args = append(args, MacroFlag, t.Macros)
		}
		args = append(args, DatabaseFlag, t.Path)
	}
	return args
}
