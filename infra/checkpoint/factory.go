package checkpoint

import (
	"fmt"

	"github.com/lcabon/resq/core/factory"
	"github.com/lcabon/resq/core/workflow"
)

var storeRegistry = newRegistry()

func newRegistry() *factory.Registry[workflow.Store] {
	reg := factory.NewRegistry[workflow.Store]()
	must(reg.Register("memory", func(map[string]any) (workflow.Store, error) {
		return NewMemoryStore(), nil
	}))
	must(reg.Register("sqlite", func(conf map[string]any) (workflow.Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("sqlite checkpoint store: path is required")
		}
		return NewSQLiteStore(c.Path)
	}))
	must(reg.Register("jsonl", func(conf map[string]any) (workflow.Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("jsonl checkpoint store: path is required")
		}
		return NewJSONLStore(c.Path)
	}))
	return reg
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// NewStore instantiates a checkpoint store from configuration. An empty type
// defaults to the in-memory store.
func NewStore(cfg factory.ModuleConfig) (workflow.Store, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	return storeRegistry.Create(cfg)
}
