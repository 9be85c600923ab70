package domain

import "strings"

type QuestType string

const (
	QuestIndividual QuestType = "INDIVIDUAL"
	QuestTeam       QuestType = "TEAM"
	QuestBoth       QuestType = "BOTH"
)

// ValidQuestTypes is the canonical set of accepted quest types.
var ValidQuestTypes = map[QuestType]bool{
	QuestIndividual: true,
	QuestTeam:       true,
	QuestBoth:       true,
}

type MemberRole string

const (
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

type Track string

const (
	TrackLearning     Track = "LEARNING"
	TrackFounder      Track = "FOUNDER"
	TrackProfessional Track = "PROFESSIONAL"
	TrackFreelancer   Track = "FREELANCER"
)

// Tracks lists every development track in display order.
var Tracks = []Track{TrackLearning, TrackFounder, TrackProfessional, TrackFreelancer}

// ParseTrack accepts a track name in any case.
func ParseTrack(s string) (Track, bool) {
	t := Track(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Tracks {
		if t == known {
			return t, true
		}
	}
	return "", false
}

const (
	ProgramMemberActive   = "active"
	ProgramMemberInactive = "inactive"
)
