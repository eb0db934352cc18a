package envelope

// MergeProvenance combines the provenance chains of every input with the
// entry for the step just executed. Inherited entries keep their existing
// lineage_branch; entries that never had one are tagged with the name of the
// input they arrived through, so an entry's tag always names the branch
// closest to where it first forked. Diamond topologies duplicate shared
// history on purpose: each branch tells its own complete story.
func MergeProvenance(inputs []Input, entry ProvenanceEntry) []ProvenanceEntry {
	var merged []ProvenanceEntry
	for _, in := range inputs {
		if in.Envelope == nil {
			continue
		}
		for _, inherited := range in.Envelope.Provenance {
			if inherited.LineageBranch == "" {
				inherited.LineageBranch = in.Name
			}
			merged = append(merged, inherited)
		}
	}
	return append(merged, entry)
}

// MergeWarnings carries every input warning forward verbatim and appends the
// warnings the primitive just reported, tagged with its short name.
func MergeWarnings(inputs []Input, reported []Warning) []Warning {
	var merged []Warning
	for _, in := range inputs {
		if in.Envelope == nil {
			continue
		}
		merged = append(merged, in.Envelope.Warnings...)
	}
	return append(merged, reported...)
}
