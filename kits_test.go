package padkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuiltInKitsAreComplete(t *testing.T) {
	for name, kit := range Kits {
		assert.NotEmpty(t, kit.Name, "kit %q needs a display name", name)
		for slot, sample := range kit.Samples {
			assert.NotEmpty(t, sample, "kit %q leaves slot %d empty", name, slot)
		}
	}
}

func TestKitNamesMatchKitMap(t *testing.T) {
	names := KitNames()
	assert.Len(t, names, len(Kits))
	for _, name := range names {
		_, ok := Kits[name]
		assert.True(t, ok, "kit %q is listed but not defined", name)
	}
}

func TestGetKitFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "TR-808", GetKit("808").Name)
	assert.Equal(t, Kits[DefaultKit], GetKit("no-such-kit"))
	assert.Equal(t, "TR-909", GetKit("").Name)
}
