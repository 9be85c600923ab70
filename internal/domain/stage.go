package domain

import "strings"

type Stage string

const (
	StageIdea       Stage = "IDEA"
	StagePrototype  Stage = "PROTOTYPE"
	StageBuild      Stage = "BUILD"
	StageProject    Stage = "PROJECT"
	StageIncubate   Stage = "INCUBATE"
	StageAccelerate Stage = "ACCELERATE"
	StageScale      Stage = "SCALE"
)

// Stages is the fixed maturity order. Projects only ever move one position forward.
var Stages = []Stage{
	StageIdea,
	StagePrototype,
	StageBuild,
	StageProject,
	StageIncubate,
	StageAccelerate,
	StageScale,
}

// Index returns the position of s in Stages, or -1.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool { return s.Index() >= 0 }

// Next returns the following stage; ok is false at SCALE or for an unknown stage.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(Stages) {
		return "", false
	}
	return Stages[i+1], true
}

// Previous returns the preceding stage; ok is false at IDEA or for an unknown stage.
func (s Stage) Previous() (Stage, bool) {
	i := s.Index()
	if i <= 0 {
		return "", false
	}
	return Stages[i-1], true
}

func (s Stage) IsFinal() bool {
	return s.Valid() && s.Index() == len(Stages)-1
}

func ParseStage(v string) (Stage, bool) {
	s := Stage(strings.ToUpper(strings.TrimSpace(v)))
	return s, s.Valid()
}

// StageRequirement is what a project needs before entering a target stage.
type StageRequirement struct {
	MinQuestsCompleted int `json:"min_quests_completed" yaml:"min_quests_completed"`
	MinTeamMembers     int `json:"min_team_members" yaml:"min_team_members"`
}
