package know

// IndexTerms returns the set of raw (un-normalized) term strings a piece of
// knowledge contributes to the term→semantic-ref index, per spec §4.8 step 4.
func (k Knowledge) IndexTerms() []string {
	switch k.Type {
	case KindEntity:
		terms := make([]string, 0, 1+len(k.Entity.Type)+len(k.Entity.Facets))
		terms = append(terms, k.Entity.Name)
		terms = append(terms, k.Entity.Type...)
		for _, f := range k.Entity.Facets {
			terms = append(terms, f.Name)
		}
		return terms
	case KindAction:
		terms := []string{k.Action.JoinedVerbs()}
		if k.Action.SubjectEntityName != NoneEntity {
			terms = append(terms, k.Action.SubjectEntityName)
		}
		if k.Action.ObjectEntityName != NoneEntity {
			terms = append(terms, k.Action.ObjectEntityName)
		}
		for _, p := range k.Action.Params {
			terms = append(terms, p.Name)
		}
		return terms
	case KindTopic:
		return []string{k.Topic.Text}
	case KindTag:
		return []string{k.Tag.Text}
	default:
		return nil
	}
}

// PropertyEntry is a single (name, value) pair contributed to the
// property→semantic-ref index, per spec §4.3.
type PropertyEntry struct {
	Name  string
	Value string
}

// IndexProperties returns the property entries a piece of knowledge
// contributes. Topics contribute none, per spec §4.3.
func (k Knowledge) IndexProperties() []PropertyEntry {
	switch k.Type {
	case KindEntity:
		entries := make([]PropertyEntry, 0, 2+2*len(k.Entity.Facets))
		for _, t := range k.Entity.Type {
			entries = append(entries, PropertyEntry{Name: "type", Value: t})
		}
		entries = append(entries, PropertyEntry{Name: "name", Value: k.Entity.Name})
		for _, f := range k.Entity.Facets {
			entries = append(entries, PropertyEntry{Name: "facet.name", Value: f.Name})
			entries = append(entries, PropertyEntry{Name: "facet.value", Value: f.Value.String()})
		}
		return entries
	case KindAction:
		entries := []PropertyEntry{{Name: "verb", Value: k.Action.JoinedVerbs()}}
		if k.Action.SubjectEntityName != NoneEntity {
			entries = append(entries, PropertyEntry{Name: "subject", Value: k.Action.SubjectEntityName})
		}
		if k.Action.ObjectEntityName != NoneEntity {
			entries = append(entries, PropertyEntry{Name: "object", Value: k.Action.ObjectEntityName})
		}
		if k.Action.IndirectObjectName != NoneEntity {
			entries = append(entries, PropertyEntry{Name: "indirectObject", Value: k.Action.IndirectObjectName})
		}
		return entries
	case KindTag:
		return []PropertyEntry{{Name: "tag", Value: k.Tag.Text}}
	default:
		return nil
	}
}
