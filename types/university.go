package types

import "time"

// Institution types accepted at registration.
var UniversityTypes = []string{"Private", "Public", "Government", "Autonomous"}

// Document kinds stored for a university.
const (
	DocumentKindDocument       = "document"
	DocumentKindInfrastructure = "infrastructure"
)

// Challenge statuses for a disputed rating report.
const (
	ChallengeStatusPending  = "Pending"
	ChallengeStatusResolved = "Resolved"
	ChallengeStatusRejected = "Rejected"
)

// University represents an institution that user accounts belong to.
type University struct {
	ID                  int    `json:"id" db:"id"`
	Name                string `json:"name" db:"name"`
	InstitutionType     string `json:"institution_type" db:"institution_type"`
	Affiliation         string `json:"affiliation,omitempty" db:"affiliation"`
	RegistrationNumber  string `json:"registration_number,omitempty" db:"registration_number"`
	YearOfEstablishment int    `json:"year_of_establishment,omitempty" db:"year_of_establishment"`
	Website             string `json:"website,omitempty" db:"website"`
	Logo                string `json:"logo,omitempty" db:"logo"`

	// IsVerified is flipped only by an admin action. Users of an
	// unverified university cannot log in.
	IsVerified bool `json:"is_verified" db:"is_verified"`

	// RatingRequested records that the university asked for a rating
	// report. A second request is rejected.
	RatingRequested bool `json:"rating_requested" db:"rating_requested"`

	// Report is present once an admin generated a rating report.
	Report *Report `json:"report,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Report is a generated rating for a university.
type Report struct {
	Score       int       `json:"score" db:"report_score"`
	Summary     string    `json:"summary" db:"report_summary"`
	GeneratedAt time.Time `json:"generated_at" db:"report_generated_at"`
}

// Document is a file stored for a university. The bytes live in
// object storage; the row records the key and public URL.
type Document struct {
	ID           int       `json:"id" db:"id"`
	UniversityID int       `json:"university_id" db:"university_id"`
	Kind         string    `json:"kind" db:"kind"`
	Filename     string    `json:"filename" db:"filename"`
	Key          string    `json:"key" db:"object_key"`
	URL          string    `json:"url" db:"url"`
	UploadedAt   time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// Challenge is one entry in a university's report challenge history.
type Challenge struct {
	ID           int        `json:"id" db:"id"`
	UniversityID int        `json:"university_id" db:"university_id"`
	Reason       string     `json:"reason" db:"reason"`
	Status       string     `json:"status" db:"status"`
	Response     string     `json:"response,omitempty" db:"response"`
	ChallengedAt time.Time  `json:"challenged_at" db:"challenged_at"`
	RespondedAt  *time.Time `json:"responded_at,omitempty" db:"responded_at"`
}

// ValidUniversityType reports whether t is an accepted institution type.
func ValidUniversityType(t string) bool {
	for _, v := range UniversityTypes {
		if v == t {
			return true
		}
	}
	return false
}
