package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/repo"
)

func TestDefaultModelLoads(t *testing.T) {
	model := Default()
	require.True(t, model.TypeExists(repo.TypeContent))
	require.True(t, model.TypeExists(repo.TypeFolder))
	require.True(t, model.AspectExists(repo.AspectVersionable))
}

func TestSubtypeResolution(t *testing.T) {
	model := Default()

	require.True(t, model.IsSubtype(repo.TypeContent, repo.TypeContent))
	require.True(t, model.IsSubtype(repo.TypeContent, repo.TypeBase))
	require.True(t, model.IsSubtype("cm:dictionaryModel", repo.TypeContent))
	require.False(t, model.IsSubtype(repo.TypeFolder, repo.TypeContent))
	require.False(t, model.IsSubtype(repo.TypeBase, repo.TypeContent))
}

func TestFolderAndFileDerivation(t *testing.T) {
	model := Default()

	require.True(t, model.IsFolderType(repo.TypeFolder))
	require.True(t, model.IsFolderType(repo.TypeSystemFolder))
	require.True(t, model.IsFolderType(repo.TypeSite))
	require.False(t, model.IsFolderType(repo.TypeContent))

	require.True(t, model.IsFileType(repo.TypeContent))
	require.True(t, model.IsFileType("cm:dictionaryModel"))
	require.False(t, model.IsFileType(repo.TypeFolder))
}

func TestCreatability(t *testing.T) {
	model := Default()

	require.True(t, model.IsCreatable(repo.TypeContent))
	require.True(t, model.IsCreatable(repo.TypeFolder))
	// Abstract and protected types are not client-creatable.
	require.False(t, model.IsCreatable(repo.TypeBase))
	require.False(t, model.IsCreatable(repo.TypeObject))
	require.False(t, model.IsCreatable(repo.TypeSystemFolder))
	require.False(t, model.IsCreatable(repo.TypeSitesRoot))
	require.False(t, model.IsCreatable("no:such"))
}

func TestCanChangeType(t *testing.T) {
	model := Default()

	// Narrowing to a concrete subtype is the only legal change.
	require.True(t, model.CanChangeType(repo.TypeContent, "cm:dictionaryModel"))
	require.False(t, model.CanChangeType(repo.TypeContent, repo.TypeContent))
	require.False(t, model.CanChangeType("cm:dictionaryModel", repo.TypeContent))
	require.False(t, model.CanChangeType(repo.TypeContent, repo.TypeFolder))
	require.False(t, model.CanChangeType(repo.TypeFolder, repo.TypeSystemFolder))
}

func TestStructuralTypes(t *testing.T) {
	model := Default()

	require.True(t, model.IsStructuralType(repo.TypeSite))
	require.True(t, model.IsStructuralType(repo.TypeSiteContainer))
	require.True(t, model.IsStructuralType(repo.TypeSitesRoot))
	require.False(t, model.IsStructuralType(repo.TypeFolder))
}

func TestPropertyLegal(t *testing.T) {
	model := Default()

	// cm:title comes from the cm:titled aspect, not from cm:content.
	_, legal := model.PropertyLegal(repo.TypeContent, nil, repo.PropTitle)
	require.False(t, legal)
	def, legal := model.PropertyLegal(repo.TypeContent, []repo.QName{repo.AspectTitled}, repo.PropTitle)
	require.True(t, legal)
	require.Equal(t, PropertyText, def.Type)

	// cm:name is contributed by the cm:cmobject ancestor.
	_, legal = model.PropertyLegal(repo.TypeContent, nil, repo.PropName)
	require.True(t, legal)
}

func TestCheckValue(t *testing.T) {
	boolDef := PropertyDef{Name: repo.PropAutoVersionProps, Type: PropertyBoolean}
	require.NoError(t, CheckValue(boolDef, true))
	require.Error(t, CheckValue(boolDef, "true"))

	textDef := PropertyDef{Name: repo.PropTitle, Type: PropertyText}
	require.NoError(t, CheckValue(textDef, "hello"))
	require.Error(t, CheckValue(textDef, 42))

	// JSON numbers arrive as float64.
	intDef := PropertyDef{Name: "x:count", Type: PropertyInteger}
	require.NoError(t, CheckValue(intDef, float64(3)))
	require.NoError(t, CheckValue(intDef, 3))
	require.Error(t, CheckValue(intDef, "3"))

	require.NoError(t, CheckValue(textDef, nil))
}

func TestParseRejectsBadModels(t *testing.T) {
	// Unresolvable parent.
	_, err := Parse([]byte(`
types:
  - name: a:root
  - name: a:child
    parent: a:missing
`))
	require.Error(t, err)

	// Two roots.
	_, err = Parse([]byte(`
types:
  - name: a:one
  - name: a:two
`))
	require.Error(t, err)

	// Parent cycle.
	_, err = Parse([]byte(`
types:
  - name: a:root
  - name: a:x
    parent: a:y
  - name: a:y
    parent: a:x
`))
	require.Error(t, err)

	// Duplicate type name.
	_, err = Parse([]byte(`
types:
  - name: a:root
  - name: a:dup
    parent: a:root
  - name: a:dup
    parent: a:root
`))
	require.Error(t, err)
}
