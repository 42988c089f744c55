//go:build property

package normalize

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestMoneyProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("grouped rupee amounts parse to their value", prop.ForAll(
		func(n int64) bool {
			got, err := Money("Rs " + FormatIndian(n) + " ~ " + strconv.FormatInt(n/100000, 10) + " Lacs+")
			return err == nil && got.IsKnown() && got.Value == n
		},
		gen.Int64Range(0, 1_000_000_000_000),
	))

	properties.Property("money never panics on arbitrary text", prop.ForAll(
		func(s string) bool {
			got, err := Money(s)
			return err != nil || got.Presence != 0
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestNameProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("name normalization is idempotent", prop.ForAll(
		func(s string) bool {
			once := Name(s)
			return Name(once) == once
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
