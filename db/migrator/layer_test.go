package migrator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		base   string
		extras []string
		exp    []Layer
	}{
		{
			name: "ok/base_only",
			base: "/etc/strata/migrations",
			exp:  []Layer{{Path: "/etc/strata/migrations", Base: true}},
		},
		{
			name:   "ok/extras_reversed",
			base:   "base",
			extras: []string{"a", "b", "c"},
			exp: []Layer{
				{Path: "c"}, {Path: "b"}, {Path: "a"},
				{Path: "base", Base: true},
			},
		},
		{
			name:   "ok/duplicates_kept",
			base:   "base",
			extras: []string{"base", "x", "x"},
			exp: []Layer{
				{Path: "x"}, {Path: "x"}, {Path: "base"},
				{Path: "base", Base: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.exp, Resolve(tt.base, tt.extras))
		})
	}
}

func TestResolveOrder(t *testing.T) {
	t.Parallel()

	for n := range 10 {
		extras := make([]string, n)
		for i := range extras {
			extras[i] = fmt.Sprintf("extra-%d", i)
		}

		layers := Resolve("base", extras)
		if !assert.Len(t, layers, n+1) {
			continue
		}
		assert.Equal(t, Layer{Path: "base", Base: true}, layers[n])
		for i := range n {
			assert.Equal(t, extras[n-1-i], layers[i].Path)
			assert.False(t, layers[i].Base)
		}
		assert.Equal(t, n > 0, hasExtras(layers))
	}
}
