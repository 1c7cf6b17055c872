package cli

import (
	"github.com/xxxsen/retrojunk/internal/config"
)

const configFlag = "config"

var defaultKeyList = []string{
	"./retrojunk.json",
	"./retrojunk.yaml",
	"/etc/retrojunk.json",
}

// LoadConfig loads explicit when given, otherwise the first default file found.
func LoadConfig(explicit string) (*config.Config, error) {
	if explicit != "" {
		return config.Load(explicit)
	}
	return config.LoadFirst(defaultKeyList...)
}
