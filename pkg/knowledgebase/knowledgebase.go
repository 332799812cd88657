// Package knowledgebase holds a small curated dictionary of known
// international organizations used to rank duplicate-group members
// when recommending a master record.
package knowledgebase

import (
	"strings"

	"github.com/CBPFGMS/GOmapping/pkg/normalize"
)

// Entry is one curated organization
type Entry struct {
	StandardName string
	Acronym      string
	Aliases      []string
	Priority     int // 0-10, higher = more authoritative
}

var knownOrganizations = []Entry{
	{StandardName: "Save the Children International", Acronym: "SC", Priority: 10},
	{StandardName: "International Rescue Committee", Acronym: "IRC", Priority: 9},
	{StandardName: "Oxfam International", Acronym: "OXFAM", Priority: 9},
	{StandardName: "CARE International", Acronym: "CARE", Priority: 9},
	{StandardName: "Médecins Sans Frontières", Acronym: "MSF", Priority: 10,
		Aliases: []string{"Doctors Without Borders", "MSF International"}},
	{StandardName: "World Vision International", Acronym: "WVI", Priority: 9},
	{StandardName: "United Nations Children's Fund", Acronym: "UNICEF", Priority: 10,
		Aliases: []string{"UNICEF"}},
	{StandardName: "United Nations High Commissioner for Refugees", Acronym: "UNHCR", Priority: 10,
		Aliases: []string{"UNHCR"}},
	{StandardName: "World Food Programme", Acronym: "WFP", Priority: 10,
		Aliases: []string{"WFP"}},
	{StandardName: "ZOA International", Acronym: "ZOA", Priority: 8,
		Aliases: []string{"ZOA Refugee Care"}},
	{StandardName: "Islamic Relief Worldwide", Acronym: "IRW", Priority: 8,
		Aliases: []string{"IR Worldwide", "Islamic Relief"}},
	{StandardName: "Muslim Hands", Acronym: "MH", Priority: 7},
	{StandardName: "Muslim Aid UK", Acronym: "MA", Priority: 7},
	{StandardName: "Norwegian Refugee Council", Acronym: "NRC", Priority: 8},
	{StandardName: "Danish Refugee Council", Acronym: "DRC", Priority: 8},
	{StandardName: "Mercy Corps", Acronym: "MC", Priority: 8},
	{StandardName: "Action Against Hunger", Acronym: "AAH", Priority: 8},
	{StandardName: "Plan International", Acronym: "PI", Priority: 8},
}

// KnowledgeBase indexes curated entries by their normalized names and
// alias forms.
type KnowledgeBase struct {
	exact   map[string]*Entry
	entries []Entry
}

// New builds the default knowledge base
func New() *KnowledgeBase {
	return NewWithEntries(knownOrganizations)
}

// NewWithEntries builds a knowledge base over a custom entry set
func NewWithEntries(entries []Entry) *KnowledgeBase {
	kb := &KnowledgeBase{
		exact:   make(map[string]*Entry),
		entries: make([]Entry, len(entries)),
	}
	copy(kb.entries, entries)
	for i := range kb.entries {
		e := &kb.entries[i]
		if key := normalize.Name(e.StandardName); key != "" {
			kb.exact[key] = e
		}
		for _, alias := range e.Aliases {
			if key := normalize.Name(alias); key != "" {
				kb.exact[key] = e
			}
		}
	}
	return kb
}

// Find looks up an organization name: exact normalized match first,
// then substring containment in either direction against entry names
// and aliases.
func (kb *KnowledgeBase) Find(name string) (*Entry, bool) {
	if name == "" {
		return nil, false
	}

	normalized := normalize.Name(name)
	if normalized == "" {
		return nil, false
	}

	if e, ok := kb.exact[normalized]; ok {
		return e, true
	}

	for i := range kb.entries {
		e := &kb.entries[i]
		key := normalize.Name(e.StandardName)
		if key != "" && (strings.Contains(normalized, key) || strings.Contains(key, normalized)) {
			return e, true
		}
		for _, alias := range e.Aliases {
			aliasKey := normalize.Name(alias)
			if aliasKey != "" && (strings.Contains(normalized, aliasKey) || strings.Contains(aliasKey, normalized)) {
				return e, true
			}
		}
	}

	return nil, false
}

// Recommendation is the master-candidate score breakdown for one name
type Recommendation struct {
	Score        float64
	KBMatch      bool
	StandardName string
	KBPriority   int
	UsageCount   int
}

// Recommend scores a name as a master candidate: knowledge-base
// authority, observed usage, and name completeness, each capped.
func (kb *KnowledgeBase) Recommend(name string, usageCount int) Recommendation {
	rec := Recommendation{UsageCount: usageCount}

	if e, ok := kb.Find(name); ok {
		rec.KBMatch = true
		rec.StandardName = e.StandardName
		rec.KBPriority = e.Priority
		rec.Score += float64(e.Priority * 4)
	}

	usageScore := float64(usageCount * 4)
	if usageScore > 40 {
		usageScore = 40
	}
	rec.Score += usageScore

	completeness := float64(len([]rune(name))) / 2
	if completeness > 20 {
		completeness = 20
	}
	rec.Score += completeness

	return rec
}
