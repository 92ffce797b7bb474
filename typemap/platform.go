package typemap

import (
	"fmt"
	"regexp"
	"strings"
)

// Platform describes the data model of one target platform. Builtin C types
// are reduced to canonical fixed-width names with it, which is how overloads
// that collapse on some platform are found.
type Platform struct {
	Name        string
	LongBits    int
	PointerBits int
	WCharBits   int
	WCharSigned bool
	CharSigned  bool
	// Condition is the preprocessor expression true on this platform.
	Condition string
	// RustCfg is the cfg predicate true on this platform.
	RustCfg string
	GOOS    string
	GOARCH  string
}

// DefaultPlatforms is used when no platform list is configured.
func DefaultPlatforms() []Platform {
	return []Platform{
		{
			Name: "linux-x86_64", LongBits: 64, PointerBits: 64, WCharBits: 32, WCharSigned: true, CharSigned: true,
			Condition: "defined(__linux__) && defined(__x86_64__)",
			RustCfg:   `all(target_os = "linux", target_arch = "x86_64")`,
			GOOS:      "linux", GOARCH: "amd64",
		},
		{
			Name: "linux-aarch64", LongBits: 64, PointerBits: 64, WCharBits: 32, WCharSigned: false, CharSigned: false,
			Condition: "defined(__linux__) && defined(__aarch64__)",
			RustCfg:   `all(target_os = "linux", target_arch = "aarch64")`,
			GOOS:      "linux", GOARCH: "arm64",
		},
		{
			Name: "macos-aarch64", LongBits: 64, PointerBits: 64, WCharBits: 32, WCharSigned: true, CharSigned: true,
			Condition: "defined(__APPLE__) && defined(__aarch64__)",
			RustCfg:   `all(target_os = "macos", target_arch = "aarch64")`,
			GOOS:      "darwin", GOARCH: "arm64",
		},
		{
			Name: "windows-x86_64", LongBits: 32, PointerBits: 64, WCharBits: 16, WCharSigned: false, CharSigned: true,
			Condition: "defined(_WIN64)",
			RustCfg:   `all(target_os = "windows", target_arch = "x86_64")`,
			GOOS:      "windows", GOARCH: "amd64",
		},
	}
}

// KnownPlatforms returns DefaultPlatforms plus 32-bit Linux, indexed by name.
func KnownPlatforms() map[string]Platform {
	out := make(map[string]Platform)
	for _, p := range DefaultPlatforms() {
		out[p.Name] = p
	}
	out["linux-x86"] = Platform{
		Name: "linux-x86", LongBits: 32, PointerBits: 32, WCharBits: 32, WCharSigned: true, CharSigned: true,
		Condition: "defined(__linux__) && defined(__i386__)",
		RustCfg:   `all(target_os = "linux", target_arch = "x86")`,
		GOOS:      "linux", GOARCH: "386",
	}
	return out
}

// PlatformsByName resolves names against KnownPlatforms.
func PlatformsByName(names []string) ([]Platform, error) {
	if len(names) == 0 {
		return DefaultPlatforms(), nil
	}
	known := KnownPlatforms()
	var out []Platform
	for _, n := range names {
		p, ok := known[n]
		if !ok {
			return nil, fmt.Errorf("unknown platform %q", n)
		}
		out = append(out, p)
	}
	return out, nil
}

func sized(signed bool, bits int) string {
	if signed {
		return fmt.Sprintf("i%d", bits)
	}
	return fmt.Sprintf("u%d", bits)
}

// Canonical returns the fixed-width identity of a builtin on p, e.g. "long"
// is "i64" on LP64 platforms and "i32" on Windows.
func (p Platform) Canonical(builtin string) string {
	switch builtin {
	case "char":
		return sized(p.CharSigned, 8)
	case "signed char", "int8_t":
		return "i8"
	case "unsigned char", "uint8_t":
		return "u8"
	case "short", "int16_t":
		return "i16"
	case "unsigned short", "uint16_t", "char16_t":
		return "u16"
	case "int", "int32_t":
		return "i32"
	case "unsigned int", "uint32_t", "char32_t":
		return "u32"
	case "long":
		return sized(true, p.LongBits)
	case "unsigned long":
		return sized(false, p.LongBits)
	case "long long", "int64_t":
		return "i64"
	case "unsigned long long", "uint64_t":
		return "u64"
	case "size_t", "uintptr_t":
		return sized(false, p.PointerBits)
	case "ssize_t", "ptrdiff_t", "intptr_t":
		return sized(true, p.PointerBits)
	case "wchar_t":
		return sized(p.WCharSigned, p.WCharBits)
	case "__int128":
		return "i128"
	case "unsigned __int128":
		return "u128"
	case "float":
		return "f32"
	case "double":
		return "f64"
	}
	return builtin
}

var rustAlias = regexp.MustCompile(`(::std::os::raw::|crate::cpp_utils::)(c_[a-z]+|wchar_t)\b`)

// ResolveRust rewrites the platform-dependent aliases in a Rust type to their
// fixed-width meaning on p, so two host types can be compared for identity.
func (p Platform) ResolveRust(host string) string {
	return rustAlias.ReplaceAllStringFunc(host, func(m string) string {
		name := m[strings.LastIndex(m, ":")+1:]
		switch name {
		case "c_char":
			return p.Canonical("char")
		case "c_schar":
			return "i8"
		case "c_uchar":
			return "u8"
		case "c_short":
			return "i16"
		case "c_ushort":
			return "u16"
		case "c_int":
			return "i32"
		case "c_uint":
			return "u32"
		case "c_long":
			return p.Canonical("long")
		case "c_ulong":
			return p.Canonical("unsigned long")
		case "c_longlong":
			return "i64"
		case "c_ulonglong":
			return "u64"
		case "c_float":
			return "f32"
		case "c_double":
			return "f64"
		case "wchar_t":
			return p.Canonical("wchar_t")
		}
		return m
	})
}

// GoConstraint is the build constraint term selecting p.
func (p Platform) GoConstraint() string {
	return p.GOOS + " && " + p.GOARCH
}
