package evaluation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawItem(detailIDs []string, compoundID, iupacName, structureID, detail string, refs ...string) map[string]any {
	ids := make([]any, len(detailIDs))
	for i, id := range detailIDs {
		ids[i] = id
	}
	obj := map[string]any{
		"detail_ids":   ids,
		"compound_id":  compoundID,
		"iupac_name":   iupacName,
		"structure_id": structureID,
		"detail":       detail,
		"refs":         nil,
	}
	if len(refs) > 0 {
		rawRefs := make([]any, len(refs))
		for i, ref := range refs {
			rawRefs[i] = ref
		}
		obj["refs"] = rawRefs
	}
	return obj
}

func results(items ...map[string]any) map[string]any {
	list := make([]any, len(items))
	for i, item := range items {
		list[i] = item
	}
	return map[string]any{"results": list}
}

func TestCompositeKey(t *testing.T) {
	testCases := []struct {
		name        string
		detailIDs   []string
		compoundID  string
		structureID string
		want        string
	}{
		{
			name:        "Sorted ids",
			detailIDs:   []string{"d1", "d2"},
			compoundID:  "5",
			structureID: "s1",
			want:        "d1|d2||5||s1",
		},
		{
			name:        "Unsorted duplicated ids",
			detailIDs:   []string{"d2", "d1", "d2"},
			compoundID:  "5",
			structureID: "s1",
			want:        "d1|d2||5||s1",
		},
		{
			name:       "Empty structure id",
			detailIDs:  []string{"d9"},
			compoundID: "12a",
			want:       "d9||12a||",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CompositeKey(tc.detailIDs, tc.compoundID, tc.structureID))
		})
	}
}

func TestEmptyItem(t *testing.T) {
	item := emptyItem("d1|d2||5||s1")
	assert.Equal(t, []string{"d1", "d2"}, item.DetailIDs)
	assert.Empty(t, item.CompoundID)
	assert.Empty(t, item.StructureID)
	assert.Nil(t, item.Refs)
}

func TestItemsFromOutput(t *testing.T) {
	testCases := []struct {
		name   string
		output map[string]any
		want   map[string]*Item
	}{
		{
			name:   "No results key",
			output: map[string]any{},
			want:   map[string]*Item{},
		},
		{
			name:   "Results not a list",
			output: map[string]any{"results": "oops"},
			want:   map[string]*Item{},
		},
		{
			name: "Normalizes ids and refs",
			output: results(
				rawItem([]string{"d2", "d1", "d1"}, "5", "butane", "", "stir", "r1", "r2"),
			),
			want: map[string]*Item{
				"d1|d2||5||": {
					CompoundID: "5", IUPACName: "butane", DetailIDs: []string{"d1", "d2"},
					Detail: "stir", Refs: []string{"r1", "r2"},
				},
			},
		},
		{
			name: "Skips items without detail ids",
			output: results(
				rawItem(nil, "5", "butane", "", "stir"),
				rawItem([]string{"d1"}, "6", "hexane", "", "heat"),
			),
			want: map[string]*Item{
				"d1||6||": {CompoundID: "6", IUPACName: "hexane", DetailIDs: []string{"d1"}, Detail: "heat"},
			},
		},
		{
			name: "Keeps first of duplicated keys",
			output: results(
				rawItem([]string{"d1"}, "5", "first", "s", "a"),
				rawItem([]string{"d1"}, "5", "second", "s", "b"),
			),
			want: map[string]*Item{
				"d1||5||s": {CompoundID: "5", IUPACName: "first", StructureID: "s", DetailIDs: []string{"d1"}, Detail: "a"},
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ItemsFromOutput(tc.output)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ItemsFromOutput() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestItemsFromOutput_Malformed(t *testing.T) {
	nullCompound := rawItem([]string{"d1"}, "", "x", "", "y")
	nullCompound["compound_id"] = nil
	nullStructure := rawItem([]string{"d2"}, "7", "x", "", "y")
	nullStructure["structure_id"] = nil
	badRefs := rawItem([]string{"d3"}, "8", "x", "", "y")
	badRefs["refs"] = []any{1.0}
	emptyRefs := rawItem([]string{"d4"}, "9", "x", "", "y")
	emptyRefs["refs"] = []any{}
	numericDetail := rawItem([]string{"d5"}, "10", "x", "", "y")
	numericDetail["detail"] = 3.0

	items := ItemsFromOutput(results(nullCompound, nullStructure, badRefs, emptyRefs, numericDetail))

	require.Len(t, items, 2)
	assert.Contains(t, items, "d2||7||")
	require.Contains(t, items, "d4||9||")
	assert.Nil(t, items["d4||9||"].Refs)
}
