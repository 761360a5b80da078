package vars

import (
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/reststudio/internal/errdef"
)

// EnvFile is the YAML shape used to move one environment between stores.
type EnvFile struct {
	Name      string     `yaml:"name"`
	Variables []Variable `yaml:"variables"`
}

func (s *Store) ExportEnv(w io.Writer, name string) error {
	if !s.EnvironmentExists(name) {
		return errdef.New(errdef.CodeStorage, "environment %q not found", name)
	}
	file := EnvFile{Name: name, Variables: s.Variables(name)}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "encode environment %s", name)
	}
	return enc.Close()
}

// ImportEnv reads an EnvFile and stores it, overwriting an environment of
// the same name. A non-empty rename replaces the name from the file.
func (s *Store) ImportEnv(r io.Reader, rename string) (string, error) {
	var file EnvFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return "", errdef.Wrap(errdef.CodeParse, err, "decode environment yaml")
	}
	name := strings.TrimSpace(rename)
	if name == "" {
		name = strings.TrimSpace(file.Name)
	}
	if name == "" {
		return "", errdef.New(errdef.CodeParse, "environment name is missing")
	}
	if err := s.AddEnvOrdered(name, file.Variables); err != nil {
		return "", err
	}
	return name, nil
}
