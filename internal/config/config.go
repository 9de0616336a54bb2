// Package config loads the root configuration document (YAML) and resolves
// each manager's subtree from it, mirroring napixd.conf.Conf.for_manager.
//
// Grounded in the dependency set declared by the pack's generated admin
// service (assets/static/services/admin/go.mod: koanf/v2 + koanf/providers/env
// + yaml), wired here into the actual loader the teacher's scaffolded service
// never shipped source for.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/napix/napixd/internal/napix"
)

// EnvPrefix is the prefix recognised for environment overrides, e.g.
// NAPIX_SERVERS__STORE__ROOT overrides servers.store.root.
const EnvPrefix = "NAPIX_"

// Doc is the parsed root configuration document.
type Doc struct {
	k *koanf.Koanf
}

// Load reads a YAML document from raw and layers environment overrides over
// it (spec §6, "env override NAPIX_<PATH>").
func Load(raw []byte) (*Doc, error) {
	var tree map[string]any
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	k := koanf.New(".")
	if tree != nil {
		if err := k.Load(confmap.Provider(tree, "."), nil); err != nil {
			return nil, fmt.Errorf("load config tree: %w", err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		trimmed := strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(trimmed), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	return &Doc{k: k}, nil
}

// ForManager narrows the document down to the subtree addressed by chain, the
// manager names from the root down to (and including) the target node
// (napixd.conf.Conf.for_manager's Go analogue, used by service.ConfResolver).
func (d *Doc) ForManager(chain []string) napix.Conf {
	path := strings.ToLower(strings.Join(chain, "."))
	sub := d.k.Cut(path)
	if sub == nil {
		return napix.Conf{}
	}
	out := napix.Conf{}
	for k, v := range sub.All() {
		out[k] = v
	}
	return out
}
