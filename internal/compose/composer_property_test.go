//go:build property
// +build property

package compose

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestComposerProperties checks the rendering invariants over generated
// configurations and fragment shapes.
func TestComposerProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: rendering the same (root, config) pair twice is
	// byte-identical.
	properties.Property("render determinism", prop.ForAll(
		func(target string, args []string, useSeeds bool) bool {
			store := MapStore{
				"root": "{{plugin \"A\"}}\n{{include \"sub\"}}\n{{.target}}{{range .target_args}} {{.}}{{end}}",
				"sub":  "{{if .use_seeds}}{{plugin \"Seeds\"}}{{end}}{{plugin \"A\"}}",
			}
			config := map[string]any{
				"target":      target,
				"target_args": args,
				"use_seeds":   useSeeds,
			}

			c := NewComposer(store)
			first, err1 := c.Render("root", config)
			second, err2 := c.Render("root", config)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return first == second
		},
		gen.AlphaString(),
		gen.SliceOf(gen.AlphaString()),
		gen.Bool(),
	))

	// Property: a plugin registered any number of times appears exactly
	// once in the output.
	properties.Property("plugin registration idempotence", prop.ForAll(
		func(repeats uint8) bool {
			n := int(repeats%8) + 2
			var src strings.Builder
			for i := 0; i < n; i++ {
				src.WriteString("{{plugin \"Dup\"}}\n")
			}
			store := MapStore{"root": src.String()}

			out, err := NewComposer(store).Render("root", map[string]any{})
			if err != nil {
				return false
			}
			return strings.Count(out, `add_plugin("Dup")`) == 1
		},
		gen.UInt8(),
	))

	// Property: include chains of any depth expand fully and
	// deterministically.
	properties.Property("include chain expansion", prop.ForAll(
		func(depth uint8) bool {
			n := int(depth%10) + 1
			store := MapStore{}
			for i := 0; i < n; i++ {
				if i == n-1 {
					store[fragName(i)] = "leaf"
				} else {
					store[fragName(i)] = fmt.Sprintf("{{include %q}}", fragName(i+1))
				}
			}

			c := NewComposer(store)
			first, err := c.Render(fragName(0), map[string]any{})
			if err != nil {
				return false
			}
			second, _ := c.Render(fragName(0), map[string]any{})
			return first == "leaf\n" && first == second
		},
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

func fragName(i int) string {
	return fmt.Sprintf("frag-%d", i)
}
