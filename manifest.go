package iocfixture

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// manifestFile is the on-disk layout of a template manifest:
//
//	[[template]]
//	path = "db/motor.db"
//	macros = "P=SIM:,M=M1"
type manifestFile struct {
	Template []manifestTemplate `toml:"template"`
}

type manifestTemplate struct {
	Path   string `toml:"path"`
	Macros string `toml:"macros"`
}

// LoadManifest reads the templates listed in a TOML manifest, in file order.
// Relative template paths are resolved against the manifest's directory.
func LoadManifest(path string) ([]Template, error) {
	var mf manifestFile
	md, err := toml.DecodeFile(path, &mf)
	if err != nil {
		return nil, &OpError{Op: OpManifest, Name: path, Err: err}
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, &OpError{Op: OpManifest, Name: path, Err: fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))}
	}

	if len(mf.Template) == 0 {
		return nil, &OpError{Op: OpManifest, Name: path, Err: ErrNoTemplates}
	}

	base := filepath.Dir(path)
	templates := make([]Template, 0, len(mf.Template))
	for i, mt := range mf.Template {
		t := Template{Path: mt.Path, Macros: mt.Macros}
		if err := t.Validate(); err != nil {
			return nil, &OpError{Op: OpManifest, Name: path, Err: fmt.Errorf("template %d: %w", i, err)}
		}
		if !filepath.IsAbs(t.Path) {
			t.Path = filepath.Join(base, t.Path)
		}
		templates = append(templates, t)
	}

	return templates, nil
}
