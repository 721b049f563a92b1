package content

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed fallback.toml
var fallbackTOML string

// Dataset is the set of records bundled with the binary.
type Dataset struct {
	Posts    []Post    `toml:"posts"`
	Projects []Project `toml:"projects"`
	Skills   []Skill   `toml:"skills"`
}

var (
	fallbackOnce sync.Once
	fallbackData Dataset
	fallbackErr  error
)

// Fallback returns the bundled dataset, decoded once.
func Fallback() (Dataset, error) {
	fallbackOnce.Do(func() {
		fallbackData, fallbackErr = ParseDataset(fallbackTOML)
	})
	return fallbackData, fallbackErr
}

// ParseDataset decodes a dataset from TOML.
func ParseDataset(doc string) (Dataset, error) {
	var ds Dataset
	if _, err := toml.Decode(doc, &ds); err != nil {
		return Dataset{}, fmt.Errorf("decode fallback dataset: %w", err)
	}
	return ds, nil
}
