package common

import (
	"fmt"
	"os"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/DaoCloud/listcache/common/constants"
)

// Collection describes one list-able entity type (trees, events, sites ...).
// Index maps a field name to the expression extracting it from an entity:
// a JSONPath like `{.site.name}`, a go template containing `{{`, or a raw value.
type Collection struct {
	Name     string            `json:"name"`
	IDField  string            `json:"id_field,omitempty"`
	Index    map[string]string `json:"index"`
	Fixtures []string          `json:"fixtures,omitempty"`
}

type Config struct {
	Token       string       `json:"token,omitempty"`
	Collections []Collection `json:"collections"`
}

var (
	cfgLock sync.RWMutex
	cfg     = &Config{}
)

func InitConfig(c *Config) {
	cfgLock.Lock()
	defer cfgLock.Unlock()
	cfg = c
}

func GetConfig() Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	return *cfg
}

// LoadConfig reads a YAML or JSON config file.
func LoadConfig(path string) (*Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(bs)
}

func ParseConfig(bs []byte) (*Config, error) {
	c := Config{}
	if err := yaml.Unmarshal(bs, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	seen := map[string]bool{}
	for i := range c.Collections {
		col := &c.Collections[i]
		if col.Name == "" {
			return nil, fmt.Errorf("collection #%d has no name", i)
		}
		if seen[col.Name] {
			return nil, fmt.Errorf("duplicated collection %s", col.Name)
		}
		seen[col.Name] = true
		if col.IDField == "" {
			col.IDField = constants.DefaultIDField
		}
		if col.Index == nil {
			col.Index = map[string]string{}
		}
		if _, ok := col.Index[col.IDField]; !ok {
			col.Index[col.IDField] = fmt.Sprintf("{.%s}", col.IDField)
		}
	}
	return &c, nil
}

func (c Config) Collection(name string) (Collection, bool) {
	for _, col := range c.Collections {
		if col.Name == name {
			return col, true
		}
	}
	return Collection{}, false
}
