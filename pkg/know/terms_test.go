package know

import (
	"reflect"
	"testing"
)

func TestIndexTermsEntity(t *testing.T) {
	k := NewEntityKnowledge(ConcreteEntity{
		Name: "Alice", Type: []string{"person", "employee"},
		Facets: []Facet{{Name: "role", Value: StringValue("engineer")}},
	})
	got := k.IndexTerms()
	want := []string{"Alice", "person", "employee", "role"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("IndexTerms() = %v, want %v", got, want)
	}
}

func TestIndexTermsActionSkipsNoneEntity(t *testing.T) {
	k := NewActionKnowledge(Action{
		Verbs: []string{"buy"}, SubjectEntityName: "Alice",
		ObjectEntityName: NoneEntity, IndirectObjectName: NoneEntity,
	})
	got := k.IndexTerms()
	want := []string{"buy", "Alice"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("IndexTerms() = %v, want %v", got, want)
	}
}

func TestIndexTermsTopicAndTag(t *testing.T) {
	if got := NewTopicKnowledge(Topic{Text: "cooking"}).IndexTerms(); !reflect.DeepEqual(got, []string{"cooking"}) {
		t.Fatalf("topic IndexTerms() = %v", got)
	}
	if got := NewTagKnowledge(Tag{Text: "urgent"}).IndexTerms(); !reflect.DeepEqual(got, []string{"urgent"}) {
		t.Fatalf("tag IndexTerms() = %v", got)
	}
}

func TestIndexPropertiesEntity(t *testing.T) {
	k := NewEntityKnowledge(ConcreteEntity{Name: "Alice", Type: []string{"person"}})
	got := k.IndexProperties()
	want := []PropertyEntry{{Name: "type", Value: "person"}, {Name: "name", Value: "Alice"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("IndexProperties() = %v, want %v", got, want)
	}
}

func TestIndexPropertiesTopicIsEmpty(t *testing.T) {
	k := NewTopicKnowledge(Topic{Text: "weather"})
	if got := k.IndexProperties(); len(got) != 0 {
		t.Fatalf("expected no properties for a topic, got %v", got)
	}
}

func TestIndexPropertiesActionOmitsNoneRoles(t *testing.T) {
	k := NewActionKnowledge(Action{
		Verbs: []string{"give"}, SubjectEntityName: "Alice",
		ObjectEntityName: "book", IndirectObjectName: NoneEntity,
	})
	got := k.IndexProperties()
	want := []PropertyEntry{
		{Name: "verb", Value: "give"},
		{Name: "subject", Value: "Alice"},
		{Name: "object", Value: "book"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("IndexProperties() = %v, want %v", got, want)
	}
}
