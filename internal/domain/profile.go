// User profiles consumed by the scoring engine and the generation
// collaborator. Profiles are external inputs (loaded from configuration or a
// profile service); the orchestration core only reads them.
package domain

// Profile describes a user the engine applies on behalf of.
type Profile struct {
	UserID          string   `yaml:"user_id"          json:"user_id"`
	Skills          []string `yaml:"skills"           json:"skills"`
	ExperienceYears int      `yaml:"experience_years" json:"experience_years"`
	Roles           []string `yaml:"roles"            json:"roles"`
	Interests       []string `yaml:"interests"        json:"interests"`
	CareerGoals     string   `yaml:"career_goals"     json:"career_goals"`
	MinSalary       *float64 `yaml:"min_salary"       json:"min_salary,omitempty"`
	// PreferredPlatform selects the submission platform for this user's
	// applications; empty means the engine default.
	PreferredPlatform string `yaml:"preferred_platform" json:"preferred_platform"`
}
