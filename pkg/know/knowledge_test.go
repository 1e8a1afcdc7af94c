package know

import "testing"

func TestConcreteEntityValidate(t *testing.T) {
	tests := []struct {
		name    string
		entity  ConcreteEntity
		wantErr bool
	}{
		{"valid", ConcreteEntity{Name: "Alice", Type: []string{"person"}}, false},
		{"empty name", ConcreteEntity{Name: "  ", Type: []string{"person"}}, true},
		{"no type", ConcreteEntity{Name: "Alice"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entity.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActionValidate(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{
			name: "valid",
			action: Action{Verbs: []string{"buy"}, SubjectEntityName: "Alice",
				ObjectEntityName: NoneEntity, IndirectObjectName: NoneEntity},
			wantErr: false,
		},
		{"no verbs", Action{SubjectEntityName: NoneEntity, ObjectEntityName: NoneEntity, IndirectObjectName: NoneEntity}, true},
		{"blank role", Action{Verbs: []string{"buy"}, SubjectEntityName: "", ObjectEntityName: NoneEntity, IndirectObjectName: NoneEntity}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKnowledgeValidateDispatch(t *testing.T) {
	valid := []Knowledge{
		NewEntityKnowledge(ConcreteEntity{Name: "Bob", Type: []string{"person"}}),
		NewActionKnowledge(Action{Verbs: []string{"eat"}, SubjectEntityName: "Bob", ObjectEntityName: NoneEntity, IndirectObjectName: NoneEntity}),
		NewTopicKnowledge(Topic{Text: "lunch"}),
		NewTagKnowledge(Tag{Text: "important"}),
	}
	for _, k := range valid {
		if err := k.Validate(); err != nil {
			t.Fatalf("Validate(%v) = %v, want nil", k.Type, err)
		}
	}

	if err := (Knowledge{Type: KindTopic, Topic: Topic{Text: ""}}).Validate(); err == nil {
		t.Fatal("expected error for empty topic text")
	}
	if err := (Knowledge{}).Validate(); err == nil {
		t.Fatal("expected error for unset knowledge type")
	}
}

func TestJoinedVerbs(t *testing.T) {
	a := Action{Verbs: []string{"run", "jump"}}
	if got := a.JoinedVerbs(); got != "run jump" {
		t.Fatalf("JoinedVerbs() = %q, want %q", got, "run jump")
	}
}
