// Package model holds the data types shared across the research pipeline:
// projects, plans, evidence, pathways, level outputs, confidence, and the
// knowledge graph artifact. Types here carry no behavior beyond small,
// pure helpers — the engine's logic lives in the packages that consume them.
package model

import "time"

// EvidenceType is one of the eleven closed evidence categories. Each type
// maps 1:1 to a pathway id via PathwayIDForType.
type EvidenceType string

const (
	EvidenceSCI EvidenceType = "SCI"
	EvidenceGOV EvidenceType = "GOV"
	EvidenceORG EvidenceType = "ORG"
	EvidenceEXP EvidenceType = "EXP"
	EvidenceSTA EvidenceType = "STA"
	EvidenceFIN EvidenceType = "FIN"
	EvidenceDOC EvidenceType = "DOC"
	EvidenceMED EvidenceType = "MED"
	EvidenceHIS EvidenceType = "HIS"
	EvidenceTES EvidenceType = "TES"
	EvidenceTEC EvidenceType = "TEC"
)

// ValidEvidenceTypes enumerates the closed evidence-type set.
var ValidEvidenceTypes = map[EvidenceType]bool{
	EvidenceSCI: true, EvidenceGOV: true, EvidenceORG: true, EvidenceEXP: true,
	EvidenceSTA: true, EvidenceFIN: true, EvidenceDOC: true, EvidenceMED: true,
	EvidenceHIS: true, EvidenceTES: true, EvidenceTEC: true,
}

// PathwayIDForType returns "P-<TYPE>" for a recognized evidence type, or ""
// if t is not one of the closed set of evidence types.
func PathwayIDForType(t EvidenceType) string {
	if !ValidEvidenceTypes[t] {
		return ""
	}
	return "P-" + string(t)
}

// SourceRating is the A-F reliability grade attached to a piece of evidence.
type SourceRating string

// InfoRating is the 1-6 informativeness grade attached to a piece of evidence.
type InfoRating int

// Citation accompanies a finding with enough detail to trace it back.
type Citation struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
	Year int    `json:"year,omitempty"`
}

// EvidenceItem is a single classified fact discovered during classification,
// or synthesized by the orchestrator for a cross-pathway second wave.
type EvidenceItem struct {
	ID                string       `json:"id"`
	Type              EvidenceType `json:"type"`
	SourceRating      SourceRating `json:"sourceRating"`
	InfoRating        InfoRating   `json:"infoRating"`
	Description       string       `json:"description"`
	Citation          Citation     `json:"citation"`
	TriggeredPathway  string       `json:"triggeredPathway"`
}

// EvidenceManifest is the output of a single classification worker.
type EvidenceManifest struct {
	SubQuestionID string         `json:"subQuestionId,omitempty"`
	SubQuestions  []string       `json:"subQuestions"`
	EvidenceItems []EvidenceItem `json:"evidenceItems"`
}

// SubQuestion is one decomposed research question from the Plan.
type SubQuestion struct {
	ID                   string         `json:"id"`
	Question             string         `json:"question"`
	Scope                string         `json:"scope"`
	ExpectedEvidenceTypes []EvidenceType `json:"expectedEvidenceTypes"`
}

// Plan is the ordered output of the planning phase.
type Plan struct {
	SubQuestions []SubQuestion `json:"subQuestions"`
}

// ProjectStatus is the total order of phase names plus the terminal states.
type ProjectStatus string

const (
	StatusPending        ProjectStatus = "pending"
	StatusPlanning       ProjectStatus = "planning"
	StatusClassification ProjectStatus = "classification"
	StatusInvestigation  ProjectStatus = "investigation"
	StatusAdjudication   ProjectStatus = "adjudication"
	StatusSynthesis      ProjectStatus = "synthesis"
	StatusComplete       ProjectStatus = "complete"
	StatusError          ProjectStatus = "error"
)

// Project is the identity and lifecycle record for one research run.
type Project struct {
	ID           string        `json:"id"`
	Topic        string        `json:"topic"`
	Created      time.Time     `json:"created"`
	Updated      time.Time     `json:"updated"`
	Status       ProjectStatus `json:"status"`
	StatusDetail string        `json:"statusDetail,omitempty"`
	Directory    string        `json:"-"`
}

// Touch advances Updated and sets the current phase/status.
func (p *Project) Touch(status ProjectStatus, detail string) {
	p.Status = status
	p.StatusDetail = detail
	p.Updated = time.Now()
}
