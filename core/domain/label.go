package domain

import "strings"

// Label is one member of the closed categorization set. Emails never carry
// free-text labels: anything the classifier returns outside this set is
// dropped and replaced by DefaultLabel.
type Label string

const (
	LabelSupport Label = "Support"
	LabelSales   Label = "Sales"
	LabelUrgent  Label = "Urgent"
	LabelGeneral Label = "General"
)

// DefaultLabel is assigned when classification produces nothing usable.
const DefaultLabel = LabelGeneral

// AllLabels lists every member of the enumeration.
var AllLabels = []Label{LabelSupport, LabelSales, LabelUrgent, LabelGeneral}

var labelSet = map[Label]struct{}{
	LabelSupport: {},
	LabelSales:   {},
	LabelUrgent:  {},
	LabelGeneral: {},
}

// IsValidLabel reports whether s is a member of the enumeration.
func IsValidLabel(s string) bool {
	_, ok := labelSet[Label(s)]
	return ok
}

// ParseLabels parses a comma-separated classifier reply into enumeration
// members, dropping unknown tokens. An empty or fully-invalid reply yields
// the single DefaultLabel, so the result is always non-empty.
func ParseLabels(reply string) []Label {
	var labels []Label
	seen := make(map[Label]struct{})
	for _, token := range strings.Split(reply, ",") {
		token = strings.TrimSpace(token)
		if !IsValidLabel(token) {
			continue
		}
		l := Label(token)
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		labels = append(labels, l)
	}
	if len(labels) == 0 {
		return []Label{DefaultLabel}
	}
	return labels
}

// LabelStrings converts labels to their string form for storage.
func LabelStrings(labels []Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}

// LabelsFromStrings converts stored strings back to labels, dropping any
// value that is no longer part of the enumeration.
func LabelsFromStrings(values []string) []Label {
	labels := make([]Label, 0, len(values))
	for _, v := range values {
		if IsValidLabel(v) {
			labels = append(labels, Label(v))
		}
	}
	return labels
}
