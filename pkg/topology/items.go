package topology

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
)

// ConfigItems is a YAML mapping decoded in document order. Plain maps would
// lose the order operators wrote the keys in.
type ConfigItems []nodeconfig.ConfigItem

// UnmarshalYAML decodes a mapping of scalars, keeping key order
func (c *ConfigItems) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		*c = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", value.Line)
	}

	items := make(ConfigItems, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: keys must be scalars", key.Line)
		}
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: value of %q must be a scalar", val.Line, key.Value)
		}
		items = append(items, nodeconfig.ConfigItem{Key: key.Value, Value: val.Value})
	}

	*c = items
	return nil
}

