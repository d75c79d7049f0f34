package fingerprint

import (
	"math"
	"sort"

	"github.com/resonai/ybt-sub000/src/core"
)

// canonicalProps serializes a PropMap into a deterministic byte sequence:
// keys are recursively sorted (§4.6 "Props are canonicalized by
// recursively sorting map keys"). Target-ref values contribute only
// their string form — never a dep's hash — since self-hash structural
// position, not dep content, is what §4.6 says belongs here.
func canonicalProps(props core.PropMap) []byte {
	var out []byte
	for _, key := range props.SortedKeys() {
		out = append(out, []byte(key)...)
		out = append(out, 0)
		out = append(out, canonicalValue(props[key])...)
		out = append(out, 0, 0)
	}
	return out
}

func canonicalValue(v core.PropValue) []byte {
	var out []byte
	appendTagged := func(tag byte, b []byte) {
		out = append(out, tag)
		out = append(out, b...)
	}
	appendTagged(byte(v.Type), nil)
	out = append(out, []byte(v.Str)...)
	out = append(out, 0)
	out = append(out, floatBytes(v.Num)...)
	if v.Bool {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	for _, item := range v.List {
		out = append(out, []byte(item)...)
		out = append(out, 0)
	}
	out = append(out, 0xff)
	for _, ref := range v.Refs {
		out = append(out, []byte(ref.String())...)
		out = append(out, 0)
	}
	out = append(out, 0xfe)
	if v.Mapping != nil {
		keys := make([]string, 0, len(v.Mapping))
		for k := range v.Mapping {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, []byte(k)...)
			out = append(out, 0)
			out = append(out, canonicalValue(v.Mapping[k])...)
			out = append(out, 0, 0)
		}
	}
	return out
}

func floatBytes(f float64) []byte {
	bits := make([]byte, 8)
	u := math.Float64bits(f)
	for i := 0; i < 8; i++ {
		bits[i] = byte(u >> (8 * i))
	}
	return bits
}
