package models

import "time"

// Status is the citizen-facing lifecycle state of a complaint.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusResolved Status = "resolved"
	StatusRejected Status = "rejected"
)

// ValidStatus reports whether s is one of the four defined lifecycle states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusVerified, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// statusTransitions lists the allowed forward transitions. Same-state updates
// are always permitted as no-ops.
var statusTransitions = map[Status][]Status{
	StatusPending:  {StatusVerified, StatusRejected},
	StatusVerified: {StatusResolved},
}

// CanTransition reports whether a direct status update from one state to
// another is allowed. Reversing a rejection requires a fresh admin decision
// and goes through the decision path, not a plain status update.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Category is the closed set of complaint categories shared by citizen
// submissions, classifier output and admin overrides.
type Category string

const (
	CategoryPothole      Category = "pothole"
	CategoryGarbage      Category = "garbage"
	CategoryWaterLeakage Category = "water_leakage"
	CategoryUnknown      Category = "unknown"
)

func ValidCategory(c Category) bool {
	switch c {
	case CategoryPothole, CategoryGarbage, CategoryWaterLeakage, CategoryUnknown:
		return true
	}
	return false
}

// Verdict is the administrator's judgment on the AI proposal.
type Verdict string

const (
	VerdictPending  Verdict = "pending"
	VerdictVerified Verdict = "verified"
	VerdictRejected Verdict = "rejected"
)

func ValidVerdict(v Verdict) bool {
	switch v {
	case VerdictPending, VerdictVerified, VerdictRejected:
		return true
	}
	return false
}

// DecisionSource records whether the current disposition came from the
// classifier or from an administrator.
type DecisionSource string

const (
	SourceAI    DecisionSource = "ai"
	SourceAdmin DecisionSource = "admin"
)

// Role of an authenticated caller.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Complaint is the unit of work: a citizen-submitted civic issue report.
type Complaint struct {
	ID            int64     `json:"id"`
	ReporterID    int64     `json:"reporter_id"`
	ComplaintType Category  `json:"complaint_type,omitempty"`
	Description   string    `json:"description,omitempty"`
	Location      string    `json:"location,omitempty"`
	ImagePath     string    `json:"image_path,omitempty"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AIAssessment is one classifier result for a complaint. Assessments are
// append-only; the newest one is the complaint's current assessment.
type AIAssessment struct {
	ComplaintID  int64     `json:"complaint_id"`
	DetectedType Category  `json:"detected_type"`
	Confidence   float64   `json:"confidence"`
	ModelName    string    `json:"model_name"`
	AssessedAt   time.Time `json:"assessed_at"`
}

// Decision is the administrator's disposition of a complaint, at most one
// active per complaint. A later decision fully replaces it.
type Decision struct {
	ComplaintID   int64          `json:"complaint_id"`
	AIStatus      Verdict        `json:"ai_status"`
	OverrideType  *Category      `json:"override_type,omitempty"`
	EffectiveType Category       `json:"effective_type"`
	Source        DecisionSource `json:"decision_source"`
	AdminID       int64          `json:"admin_id"`
	DecidedAt     time.Time      `json:"decision_timestamp"`
}

// EffectiveCategory resolves the category used for reporting: the admin
// override when present, else the current assessment's detected type, else
// unknown.
func EffectiveCategory(override *Category, assessment *AIAssessment) Category {
	if override != nil {
		return *override
	}
	if assessment != nil && assessment.DetectedType != "" {
		return assessment.DetectedType
	}
	return CategoryUnknown
}

// ReviewItem pairs a complaint with its current assessment for list views.
type ReviewItem struct {
	Complaint
	Assessment *AIAssessment `json:"assessment,omitempty"`
}

// ComplaintDetail is the full decision view: complaint, current assessment
// and active decision, the latter two possibly absent.
type ComplaintDetail struct {
	Complaint
	Assessment *AIAssessment `json:"assessment,omitempty"`
	Decision   *Decision     `json:"decision,omitempty"`
}
