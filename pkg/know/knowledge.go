package know

import (
	"strings"

	"github.com/liliang-cn/knowmem/pkg/knomerr"
)

// NoneEntity is the sentinel used for an Action role that resolves to no
// entity, per spec §3.
const NoneEntity = "none"

// Kind discriminates the closed Knowledge union: entity, action, topic, tag.
// The set is fixed by the snapshot wire format (package snapshot) and must
// not grow without a format revision.
type Kind string

const (
	KindEntity Kind = "entity"
	KindAction Kind = "action"
	KindTopic  Kind = "topic"
	KindTag    Kind = "tag"
)

// VerbTense is the grammatical tense of an Action's verbs.
type VerbTense string

const (
	TensePast    VerbTense = "past"
	TensePresent VerbTense = "present"
	TenseFuture  VerbTense = "future"
)

// ConcreteEntity represents a tangible noun extracted from a message.
type ConcreteEntity struct {
	Name   string   `json:"name"`
	Type   []string `json:"type"`
	Facets []Facet  `json:"facets,omitempty"`
}

// Validate enforces spec invariants: a non-empty name and at least one type.
func (e ConcreteEntity) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return knomerr.ValidationError("entity", errEmptyField("name"))
	}
	if len(e.Type) == 0 {
		return knomerr.ValidationError("entity", errEmptyField("type"))
	}
	return nil
}

// ActionParam is a named parameter of an Action; String-only params are
// represented directly as ActionParam{Name: s} by callers that only have a
// bare string, matching the spec's `string | ActionParam` union.
type ActionParam struct {
	Name  string `json:"name"`
	Value Value  `json:"value,omitempty"`
}

// Action represents a verb phrase relating a subject to an object and/or
// indirect object, each identified by entity name or NoneEntity.
type Action struct {
	Verbs               []string      `json:"verbs"`
	VerbTense           VerbTense     `json:"verbTense"`
	SubjectEntityName   string        `json:"subjectEntityName"`
	ObjectEntityName    string        `json:"objectEntityName"`
	IndirectObjectName  string        `json:"indirectObjectEntityName"`
	Params              []ActionParam `json:"params,omitempty"`
	SubjectEntityFacet  *Facet        `json:"subjectEntityFacet,omitempty"`
}

// Validate enforces spec invariants: at least one verb, and the three name
// roles default to NoneEntity rather than being empty.
func (a Action) Validate() error {
	if len(a.Verbs) == 0 {
		return knomerr.ValidationError("action", errEmptyField("verbs"))
	}
	for _, name := range []string{a.SubjectEntityName, a.ObjectEntityName, a.IndirectObjectName} {
		if strings.TrimSpace(name) == "" {
			return knomerr.ValidationError("action", errEmptyField("entity role name"))
		}
	}
	return nil
}

// JoinedVerbs joins the action's verbs with a single space, the canonical
// form used for term- and property-indexing.
func (a Action) JoinedVerbs() string {
	return strings.Join(a.Verbs, " ")
}

// Topic is a single extracted subject-matter label.
type Topic struct {
	Text string `json:"text"`
}

// Tag is a single free-form label attached to a message or semantic ref.
type Tag struct {
	Text string `json:"text"`
}

// Knowledge is the closed tagged union over {ConcreteEntity, Action, Topic,
// Tag}. Exactly one of the typed fields is populated, matching KnowledgeType.
type Knowledge struct {
	Type   Kind           `json:"knowledgeType"`
	Entity ConcreteEntity `json:"entity,omitempty"`
	Action Action         `json:"action,omitempty"`
	Topic  Topic          `json:"topic,omitempty"`
	Tag    Tag            `json:"tag,omitempty"`
}

func NewEntityKnowledge(e ConcreteEntity) Knowledge { return Knowledge{Type: KindEntity, Entity: e} }
func NewActionKnowledge(a Action) Knowledge         { return Knowledge{Type: KindAction, Action: a} }
func NewTopicKnowledge(t Topic) Knowledge           { return Knowledge{Type: KindTopic, Topic: t} }
func NewTagKnowledge(t Tag) Knowledge                { return Knowledge{Type: KindTag, Tag: t} }

// Validate dispatches to the validator of the populated union member.
func (k Knowledge) Validate() error {
	switch k.Type {
	case KindEntity:
		return k.Entity.Validate()
	case KindAction:
		return k.Action.Validate()
	case KindTopic:
		if strings.TrimSpace(k.Topic.Text) == "" {
			return knomerr.ValidationError("topic", errEmptyField("text"))
		}
		return nil
	case KindTag:
		if strings.TrimSpace(k.Tag.Text) == "" {
			return knomerr.ValidationError("tag", errEmptyField("text"))
		}
		return nil
	default:
		return knomerr.ValidationError("knowledge", errEmptyField("knowledgeType"))
	}
}

// KnowledgeResponse is the structured result of knowledge extraction, either
// intrinsic (from KnowledgeSource.GetKnowledge) or LLM-derived.
type KnowledgeResponse struct {
	Entities       []ConcreteEntity `json:"entities,omitempty"`
	Actions        []Action         `json:"actions,omitempty"`
	InverseActions []Action         `json:"inverseActions,omitempty"`
	Topics         []Topic          `json:"topics,omitempty"`
}

// KnowledgeSource is implemented by Message metadata that can emit cheap,
// local knowledge without calling the external LLM client — e.g. a podcast
// turn's speaker/listener metadata yielding a "say" action per listener.
type KnowledgeSource interface {
	GetKnowledge() KnowledgeResponse
}

func errEmptyField(field string) error {
	return &emptyFieldError{field: field}
}

type emptyFieldError struct{ field string }

func (e *emptyFieldError) Error() string { return "missing required field: " + e.field }
