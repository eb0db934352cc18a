package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryFor(primitive string) ProvenanceEntry {
	return ProvenanceEntry{
		Primitive: primitive,
		Version:   "1.0.0",
		Timestamp: "2026-08-25T10:00:00Z",
	}
}

func TestMergeProvenance_TagsFirstBranchOnly(t *testing.T) {
	// fetch ran untagged inside its own envelope; once it arrives through the
	// "parks" input it is tagged parks, and that tag must survive a second hop.
	upstream := &Envelope{Provenance: []ProvenanceEntry{entryFor("fetch")}}

	first := MergeProvenance(
		[]Input{{Name: "parks", Envelope: upstream}},
		entryFor("buffer"),
	)
	require.Len(t, first, 2)
	assert.Equal(t, "parks", first[0].LineageBranch)
	assert.Empty(t, first[1].LineageBranch, "the fresh entry is never tagged")

	second := MergeProvenance(
		[]Input{{Name: "zones", Envelope: &Envelope{Provenance: first}}},
		entryFor("sample"),
	)
	require.Len(t, second, 3)
	assert.Equal(t, "parks", second[0].LineageBranch, "an existing tag wins over the new branch name")
	assert.Equal(t, "zones", second[1].LineageBranch)
	assert.Empty(t, second[2].LineageBranch)
}

func TestMergeProvenance_DiamondKeepsDuplicates(t *testing.T) {
	// Both branches descend from the same fetch; the shared history appears
	// once per branch rather than being collapsed.
	shared := entryFor("fetch")
	left := &Envelope{Provenance: []ProvenanceEntry{shared, entryFor("buffer")}}
	right := &Envelope{Provenance: []ProvenanceEntry{shared, entryFor("clip")}}

	merged := MergeProvenance(
		[]Input{
			{Name: "buffered", Envelope: left},
			{Name: "clipped", Envelope: right},
		},
		entryFor("join"),
	)

	require.Len(t, merged, 5)
	assert.Equal(t, "fetch", merged[0].Primitive)
	assert.Equal(t, "buffered", merged[0].LineageBranch)
	assert.Equal(t, "fetch", merged[2].Primitive)
	assert.Equal(t, "clipped", merged[2].LineageBranch)
}

func TestMergeProvenance_ManifestInputsContributeNothing(t *testing.T) {
	merged := MergeProvenance(
		[]Input{{Name: "raw", Envelope: nil}},
		entryFor("validate"),
	)
	require.Len(t, merged, 1)
	assert.Equal(t, "validate", merged[0].Primitive)
}

func TestMergeWarnings(t *testing.T) {
	inherited := Warning{Level: "warning", Primitive: "fetch", Message: "slow mirror"}
	upstream := &Envelope{Warnings: []Warning{inherited}}

	merged := MergeWarnings(
		[]Input{{Name: "parks", Envelope: upstream}, {Name: "raw"}},
		[]Warning{{Level: "info", Primitive: "buffer", Message: "reprojected"}},
	)

	require.Len(t, merged, 2)
	assert.Equal(t, inherited, merged[0], "inherited warnings pass through verbatim")
	assert.Equal(t, "buffer", merged[1].Primitive)
}
