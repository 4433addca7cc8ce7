package js

import (
	"strings"

	"github.com/dop251/goja"

	"vireo/pkg/dom"
)

// domContext caches one proxy object per node so scripts can rely on ===
// identity for the same element.
type domContext struct {
	vm    *goja.Runtime
	doc   *dom.Document
	cache map[dom.NodeID]*goja.Object
}

// bindDocument installs the global document object over the arena.
func bindDocument(vm *goja.Runtime, d *dom.Document) {
	ctx := &domContext{vm: vm, doc: d, cache: make(map[dom.NodeID]*goja.Object)}

	docObj := vm.NewObject()
	docObj.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		want := call.Arguments[0].String()
		if id := ctx.findByID(want); id != dom.None {
			return ctx.proxy(id)
		}
		return goja.Null()
	})
	docObj.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		var out []goja.Value
		if len(call.Arguments) > 0 {
			tag := strings.ToLower(call.Arguments[0].String())
			w := d.Walk()
			for {
				id, ok := w.Next()
				if !ok {
					break
				}
				if n := d.Node(id); n != nil && n.Kind == dom.ElementNode && n.Tag == tag {
					out = append(out, ctx.proxy(id))
				}
			}
		}
		return vm.ToValue(out)
	})
	docObj.Set("createElement", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(vm.NewTypeError("createElement requires a tag name"))
		}
		tag := strings.ToLower(call.Arguments[0].String())
		return ctx.proxy(d.CreateElement(tag))
	})
	docObj.Set("createTextNode", func(call goja.FunctionCall) goja.Value {
		text := ""
		if len(call.Arguments) > 0 {
			text = call.Arguments[0].String()
		}
		return ctx.proxy(d.CreateText(text))
	})
	vm.Set("document", docObj)
}

func (c *domContext) findByID(want string) dom.NodeID {
	w := c.doc.Walk()
	for {
		id, ok := w.Next()
		if !ok {
			return dom.None
		}
		n := c.doc.Node(id)
		if n == nil || n.Kind != dom.ElementNode {
			continue
		}
		if v, ok := n.Attribute("id"); ok && v == want {
			return id
		}
	}
}

const nodeIDProp = "__vireoNode"

// nodeArg recovers the arena id from a proxy passed back as an argument.
func (c *domContext) nodeArg(call goja.FunctionCall, idx int) (dom.NodeID, bool) {
	if idx >= len(call.Arguments) {
		return dom.None, false
	}
	obj := call.Arguments[idx].ToObject(c.vm)
	if obj == nil {
		return dom.None, false
	}
	v := obj.Get(nodeIDProp)
	if v == nil {
		return dom.None, false
	}
	return dom.NodeID(v.ToInteger()), true
}

func (c *domContext) throw(err error) {
	panic(c.vm.NewGoError(err))
}

func (c *domContext) proxy(id dom.NodeID) *goja.Object {
	if obj, ok := c.cache[id]; ok {
		return obj
	}
	vm, d := c.vm, c.doc
	obj := vm.NewObject()
	c.cache[id] = obj

	obj.Set(nodeIDProp, int64(id))
	if n := d.Node(id); n != nil {
		obj.Set("tagName", strings.ToUpper(n.Tag))
	}

	obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child, ok := c.nodeArg(call, 0)
		if !ok {
			panic(vm.NewTypeError("appendChild requires a node"))
		}
		if err := d.AppendChild(id, child); err != nil {
			c.throw(err)
		}
		return call.Arguments[0]
	})
	obj.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		child, ok := c.nodeArg(call, 0)
		if !ok {
			panic(vm.NewTypeError("removeChild requires a node"))
		}
		if err := d.RemoveChild(id, child); err != nil {
			c.throw(err)
		}
		c.pruneDead()
		return goja.Undefined()
	})
	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(vm.NewTypeError("setAttribute requires a name and a value"))
		}
		if err := d.SetAttribute(id, call.Arguments[0].String(), call.Arguments[1].String()); err != nil {
			c.throw(err)
		}
		return goja.Undefined()
	})
	obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		n := d.Node(id)
		if n == nil {
			return goja.Null()
		}
		if v, ok := n.Attribute(call.Arguments[0].String()); ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			if err := d.RemoveAttribute(id, call.Arguments[0].String()); err != nil {
				c.throw(err)
			}
		}
		return goja.Undefined()
	})

	obj.DefineAccessorProperty("textContent",
		vm.ToValue(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(c.textContent(id))
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			text := ""
			if len(call.Arguments) > 0 {
				text = call.Arguments[0].String()
			}
			c.setTextContent(id, text)
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)

	return obj
}

func (c *domContext) textContent(id dom.NodeID) string {
	var sb strings.Builder
	w := c.doc.WalkFrom(id)
	for {
		nid, ok := w.Next()
		if !ok {
			return sb.String()
		}
		if n := c.doc.Node(nid); n != nil && n.Kind == dom.TextNode {
			sb.WriteString(n.Text)
		}
	}
}

// setTextContent replaces the whole subtree with a single text run.
func (c *domContext) setTextContent(id dom.NodeID, text string) {
	d := c.doc
	n := d.Node(id)
	if n == nil {
		return
	}
	for _, child := range append([]dom.NodeID(nil), n.Children...) {
		if err := d.RemoveChild(id, child); err != nil {
			c.throw(err)
		}
	}
	c.pruneDead()
	if text != "" {
		if err := d.AppendChild(id, d.CreateText(text)); err != nil {
			c.throw(err)
		}
	}
}

// pruneDead evicts proxies whose nodes were destroyed, since the arena may
// reuse their ids for unrelated nodes.
func (c *domContext) pruneDead() {
	for id := range c.cache {
		if c.doc.Node(id) == nil {
			delete(c.cache, id)
		}
	}
}
