package ppepp

import (
	"math"
	"strings"
)

// SectionState is the per-section input to the completion rules: the main
// text body, any per-stage text, and the count of uploaded documents per
// stage. Missing entries mean "nothing there yet".
type SectionState struct {
	Content        string
	StageContents  map[Stage]string
	DocumentCounts map[Stage]int
}

type Progress struct {
	Percent   int `json:"progress"`
	Completed int `json:"completed_sections"`
	Total     int `json:"total_sections"`
}

type StageStatus struct {
	Stage     Stage `json:"stage"`
	Required  int   `json:"required_documents"`
	Uploaded  int   `json:"uploaded_documents"`
	Completed bool  `json:"completed"`
}

type SectionStatus struct {
	Code      string        `json:"section_code"`
	Name      string        `json:"section_name"`
	Completed bool          `json:"completed"`
	Stages    []StageStatus `json:"stages,omitempty"`
}

// TotalUnits is the number of completable units: one per text section plus
// one per (criterion, stage) pair. Derived from the catalog so the
// denominator can never drift from the rules.
func TotalUnits() int {
	return (len(SectionCodes) - len(requiredDocuments)) + len(requiredDocuments)*len(Stages)
}

// StageComplete is the canonical per-stage rule: a criterion stage is done
// when its text has been written or enough evidence documents are uploaded.
func StageComplete(code string, stage Stage, stageContent string, documentCount int) bool {
	if !IsCriterion(code) {
		return false
	}
	if strings.TrimSpace(stageContent) != "" {
		return true
	}
	required := RequiredDocuments(code, stage)
	return required > 0 && documentCount >= required
}

// TextSectionComplete applies to A, B and D sections.
func TextSectionComplete(content string) bool {
	return strings.TrimSpace(content) != ""
}

// Evaluate computes progress for one user's sections. Absent sections count
// as incomplete.
func Evaluate(states map[string]SectionState) Progress {
	completed := 0
	for _, code := range SectionCodes {
		state := states[code]
		if IsCriterion(code) {
			for _, stage := range Stages {
				if StageComplete(code, stage, state.StageContents[stage], state.DocumentCounts[stage]) {
					completed++
				}
			}
			continue
		}
		if TextSectionComplete(state.Content) {
			completed++
		}
	}
	total := TotalUnits()
	percent := int(math.Round(float64(completed) / float64(total) * 100))
	return Progress{Percent: percent, Completed: completed, Total: total}
}

// Breakdown returns per-section detail for the statistics view, with
// per-stage rows for the criterion sections.
func Breakdown(states map[string]SectionState) []SectionStatus {
	out := make([]SectionStatus, 0, len(SectionCodes))
	for _, code := range SectionCodes {
		state := states[code]
		status := SectionStatus{Code: code, Name: SectionName(code)}
		if IsCriterion(code) {
			done := true
			for _, stage := range Stages {
				ss := StageStatus{
					Stage:     stage,
					Required:  RequiredDocuments(code, stage),
					Uploaded:  state.DocumentCounts[stage],
					Completed: StageComplete(code, stage, state.StageContents[stage], state.DocumentCounts[stage]),
				}
				if !ss.Completed {
					done = false
				}
				status.Stages = append(status.Stages, ss)
			}
			status.Completed = done
		} else {
			status.Completed = TextSectionComplete(state.Content)
		}
		out = append(out, status)
	}
	return out
}
