package pdfdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssembleOrdersByLineThenColumn(t *testing.T) {
	fragments := []positioned{
		{x: 50, y: 20, w: 10, s: "b"},
		{x: 10, y: 20.5, w: 10, s: "a"},
		{x: 10, y: 40, w: 10, s: "c"},
	}

	assert.Equal(t, "a b\nc", assemble(fragments))
}

func TestAssembleJoinsAdjacentFragments(t *testing.T) {
	// Fragments closer than the word gap concatenate without a space.
	fragments := []positioned{
		{x: 10, y: 20, w: 8, s: "AB"},
		{x: 18.5, y: 20, w: 8, s: "C1"},
		{x: 40, y: 20, w: 8, s: "23"},
	}

	assert.Equal(t, "ABC1 23", assemble(fragments))
}

func TestAssembleEmpty(t *testing.T) {
	assert.Equal(t, "", assemble(nil))
}

func TestOpenRejectsEmptyInput(t *testing.T) {
	_, err := Open(nil)
	assert.Error(t, err)
}
