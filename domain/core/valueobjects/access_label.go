package valueobjects

// AccessLabel classifies the access a group grants on a course
type AccessLabel string

const (
	AccessInstructor AccessLabel = "instructor"
	AccessLearner    AccessLabel = "learner"
	AccessGeneral    AccessLabel = "general"
)

// GrantsTeaching reports whether members of a group with this label count as course instructors
func (l AccessLabel) GrantsTeaching() bool {
	return l == AccessInstructor || l == AccessGeneral
}
