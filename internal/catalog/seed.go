package catalog

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// defaultSuppliers are registered on catalog init. The registry is extensible:
// user additions come from AddSupplier or a suppliers.yaml seed file.
var defaultSuppliers = []struct{ ID, Name string }{
	{"colabor", "Colabor"},
	{"mayrand", "Mayrand"},
	{"dube_loiselle", "Dubé Loiselle"},
	{"flb", "FLB"},
	{"ben_deshaies", "Ben Deshaies"},
	{"gfs", "GFS"},
}

// seedFile is the shape of an optional suppliers.yaml:
//
//	suppliers:
//	  - id: sanifa
//	    name: Sanifa
type seedFile struct {
	Suppliers []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"suppliers"`
}

// SeedSuppliers registers the built-in suppliers plus any user-defined ones
// from the YAML file at path (skipped when path is empty or missing). Returns
// the number of suppliers registered. Safe to run repeatedly.
func SeedSuppliers(ctx context.Context, st Store, path string) (int, error) {
	count := 0
	for _, d := range defaultSuppliers {
		if _, err := st.AddSupplier(ctx, d.ID, d.Name); err != nil {
			return count, eris.Wrapf(err, "seed supplier %s", d.ID)
		}
		count++
	}

	if path == "" {
		return count, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return count, nil
		}
		return count, eris.Wrapf(err, "read supplier seed %s", path)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return count, eris.Wrapf(err, "parse supplier seed %s", path)
	}
	for _, sp := range f.Suppliers {
		if sp.ID == "" || sp.Name == "" {
			return count, eris.Wrapf(ErrValidation, "supplier seed entry needs id and name (got id=%q name=%q)", sp.ID, sp.Name)
		}
		if _, err := st.AddSupplier(ctx, sp.ID, sp.Name); err != nil {
			return count, eris.Wrapf(err, "seed supplier %s", sp.ID)
		}
		count++
	}
	return count, nil
}
