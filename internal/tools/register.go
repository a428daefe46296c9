package tools

// Candidates returns every tool this server knows how to run, before
// registration-time policy gating (readOnly / disabledTools) is applied.
func Candidates() []Tool {
	var all []Tool
	all = append(all, readTools()...)
	all = append(all, connectTools()...)
	all = append(all, createTools()...)
	all = append(all, updateTools()...)
	all = append(all, deleteTools()...)
	all = append(all, atlasTools()...)
	all = append(all, exportTools()...)
	return all
}
