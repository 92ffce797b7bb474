package rustgen

import (
	"fmt"
	"strings"

	"github.com/rust-qt/ritual/alloc"
	"github.com/rust-qt/ritual/typemap"
)

// ffiModule declares every wrapper in one extern block.
func (e *Emitter) ffiModule() (string, error) {
	w := &writer{}
	w.line("//! Raw declarations of the C wrapper functions.")
	w.line("")
	w.open("extern \"C\"")
	for i, m := range e.res.Methods {
		if m.Symbol == "" {
			return "", fmt.Errorf("%s has no wrapper symbol", m.ID())
		}
		if i > 0 {
			w.line("")
		}
		params := make([]string, len(m.Args))
		for j, a := range m.Args {
			params[j] = typemap.RustIdent(a.Name) + ": " + a.Map.Rust.FFI
		}
		if cfg := e.cfg(m.Guard()); cfg != "" {
			w.line("%s", cfg)
		}
		decl := fmt.Sprintf("pub fn %s(%s)", m.Symbol, strings.Join(params, ", "))
		if m.ReturnsValue() {
			decl += " -> " + m.Return.Rust.FFI
		}
		w.line("%s;", decl)
	}
	w.close()
	return w.String(), nil
}

// typeSizes holds the probed size of every VALUE class for each platform.
func (e *Emitter) typeSizes() string {
	w := &writer{}
	w.line("//! Sizes of C++ classes stored by value, per target platform.")
	for _, c := range e.Classes() {
		if e.mapper.Strategy(c) != alloc.Value {
			continue
		}
		for _, p := range e.mapper.Platforms() {
			size, ok := 0, false
			if e.opts.Sizes != nil {
				size, ok = e.opts.Sizes.Size(c.ID(), p.Name)
			}
			if !ok {
				log.Warningf("no size of %s on %s", c.ID(), p.Name)
				continue
			}
			w.line("")
			w.line("#[cfg(%s)]", p.RustCfg)
			w.line("pub const %s: usize = %d;", SizeConst(c), size)
		}
	}
	return w.String()
}

// wcharTypes declares wchar_t with the width it has on each platform.
func (e *Emitter) wcharTypes(w *writer) {
	for _, p := range e.mapper.Platforms() {
		w.line("#[cfg(%s)]", p.RustCfg)
		w.line("pub type wchar_t = %s;", p.Canonical("wchar_t"))
	}
}
