package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogGet(t *testing.T) {
	c := NewCatalog(Descriptor{LogicalName: "Account", TypeCode: 1})

	d, err := c.Get("account")
	require.NoError(t, err)
	assert.Equal(t, 1, d.TypeCode)

	_, err = c.Get("missing")
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Equal(t, ErrCodeMissingMetadata, ConfigErrorCodeOf(err))
}

func TestCatalogFind(t *testing.T) {
	c := NewCatalog(
		Descriptor{LogicalName: "new_project", DisplayName: "Project", TypeCode: 10010, IsCustom: true},
		Descriptor{LogicalName: "new_task", DisplayName: "Task", TypeCode: 10011, IsCustom: true},
		Descriptor{LogicalName: "task", DisplayName: "Task", TypeCode: 4212},
	)

	d, ok, err := c.Find("Project")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new_project", d.LogicalName)

	d, ok, err = c.Find("10011")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new_task", d.LogicalName)

	_, ok, err = c.Find("Nothing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = c.Find("Task")
	require.Error(t, err)
	assert.Equal(t, ErrCodeAmbiguousMatch, ConfigErrorCodeOf(err))
}
