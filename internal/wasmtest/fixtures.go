// Package wasmtest builds minimal WebAssembly binaries for tests, so the
// suite needs no prebuilt fixtures on disk.
package wasmtest

// header is the module preamble: magic plus version 1.
var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// EmptyModule returns a valid module with no sections.
func EmptyModule() []byte {
	out := make([]byte, len(header))
	copy(out, header)
	return out
}

// common sections for a single func of type ()->() exported as "_start"
var (
	typeSection   = []byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00}
	funcSection   = []byte{0x03, 0x02, 0x01, 0x00}
	exportSection = []byte{0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00}
)

// NopStart returns a module whose exported _start returns immediately.
func NopStart() []byte {
	code := []byte{0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b}
	return concat(header, typeSection, funcSection, exportSection, code)
}

// TrapStart returns a module whose exported _start executes unreachable,
// trapping the run.
func TrapStart() []byte {
	code := []byte{0x0a, 0x05, 0x01, 0x03, 0x00, 0x00, 0x0b}
	return concat(header, typeSection, funcSection, exportSection, code)
}

func concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
