package models

import (
	"strings"
	"time"
)

// StepType identifies the variant of a step node.
type StepType string

const (
	StepTypeAction    StepType = "action"
	StepTypeDelay     StepType = "delay"
	StepTypeCondition StepType = "condition"
)

// Branch places a step under one side of its parent condition.
// Root-level steps belong to BranchNone.
type Branch string

const (
	BranchNone Branch = "none"
	BranchYes  Branch = "yes"
	BranchNo   Branch = "no"
)

// NormalizeBranch maps the empty branch persisted for root rows to BranchNone.
func NormalizeBranch(b Branch) Branch {
	if b == "" {
		return BranchNone
	}

	return b
}

// RootParentID is the parent id of top-level steps.
const RootParentID int64 = 0

// Settings keys understood by the built-in step types.
const (
	SettingCampaignID = "campaign_id"
	SettingDelayValue = "value"
	SettingDelayUnit  = "unit"
	SettingCondition  = "type"
)

var delayUnits = map[string]time.Duration{
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// DelayUnit resolves a delay unit as the builder writes it. Surrounding space,
// case and a plural "s" are ignored, so " Hours " is an hour.
func DelayUnit(raw string) (unit string, size time.Duration, ok bool) {
	unit = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "s")
	size, ok = delayUnits[unit]

	return unit, size, ok
}

// StepNode is one persisted row of an automation's step tree.
// Siblings share (AutomationID, ParentID, Branch) and are ordered by Order.
type StepNode struct {
	ID           int64    `json:"step_id"       validate:"required,gt=0"`
	AutomationID int64    `json:"automation_id" validate:"required,gt=0"`
	ParentID     int64    `json:"parent_id"     validate:"gte=0"`
	Branch       Branch   `json:"branch"        validate:"omitempty,oneof=none yes no"`
	Type         StepType `json:"step_type"     validate:"required,oneof=action delay condition"`
	Settings     Settings `json:"step_settings"`
	Order        int      `json:"step_order"`
}

// IsRoot reports whether the step sits at the top level of the tree.
func (s *StepNode) IsRoot() bool {
	return s.ParentID == RootParentID
}

// CampaignID returns the referenced campaign, if any.
func (s *StepNode) CampaignID() (int64, bool) {
	id, ok := s.Settings.Int(SettingCampaignID)
	if !ok || id <= 0 {
		return 0, false
	}

	return id, true
}
