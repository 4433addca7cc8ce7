// Package js executes page scripts against the document arena through a
// goja runtime. Every mutation goes through Document methods, so the dirty
// flags the next layout cycle needs are set as a side effect.
package js

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"vireo/pkg/dom"
)

// Host owns one goja runtime. It is bound to a single goroutine, the same
// one that mutates the document between cycles.
type Host struct {
	vm  *goja.Runtime
	log *zap.Logger
}

func NewHost(log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	vm := goja.New()
	registerConsole(vm, log)
	return &Host{vm: vm, log: log}
}

// Execute binds the document and runs its scripts in document order. A
// script error stops execution; earlier mutations stay applied, mirroring
// how a browser leaves the page after a thrown top-level error.
func (h *Host) Execute(d *dom.Document) error {
	bindDocument(h.vm, d)
	for i, src := range d.Scripts {
		if _, err := h.vm.RunString(src); err != nil {
			return fmt.Errorf("js: script %d: %w", i, err)
		}
	}
	return nil
}

// Run executes one source string against the bound document, for script
// input that does not come from the page itself.
func (h *Host) Run(d *dom.Document, src string) error {
	bindDocument(h.vm, d)
	if _, err := h.vm.RunString(src); err != nil {
		return fmt.Errorf("js: %w", err)
	}
	return nil
}
