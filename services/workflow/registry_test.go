package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinition_Known(t *testing.T) {
	def := Definition(NodeTypeRouter)

	assert.Equal(t, NodeTypeRouter, def.Type)
	assert.Equal(t, CategoryLogic, def.Category)
	assert.NotEmpty(t, def.Name)
	require.NotNil(t, def.DefaultData)
	assert.Equal(t, NodeTypeRouter, def.DefaultData().NodeType)
}

func TestDefinition_UnknownFallsBack(t *testing.T) {
	def := Definition("crm:salesforce_legacy")

	assert.Equal(t, NodeTypeUnrecognized, def.Type)
	assert.Equal(t, CategorySystem, def.Category)
}

func TestDefinition_DefaultDataIsFresh(t *testing.T) {
	a := Definition(NodeTypeRouter).DefaultData()
	b := Definition(NodeTypeRouter).DefaultData()

	a.Config["defaultRoute"] = "mutated"

	assert.Equal(t, "default", b.Config["defaultRoute"])
}

func TestDefinitionsByCategory(t *testing.T) {
	triggers := DefinitionsByCategory(CategoryTriggers)
	require.NotEmpty(t, triggers)
	for _, def := range triggers {
		assert.Equal(t, CategoryTriggers, def.Category)
	}

	actions := DefinitionsByCategory(CategoryActions)
	require.NotEmpty(t, actions)

	logic := DefinitionsByCategory(CategoryLogic)
	require.NotEmpty(t, logic)
}

func TestDefinitionsByCategory_SystemHidden(t *testing.T) {
	assert.Empty(t, DefinitionsByCategory(CategorySystem))
}
