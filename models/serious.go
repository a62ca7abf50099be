package models

// SeriousProfilesTable is the backend collection for serious-mode profiles
const SeriousProfilesTable = "serious_profiles"

// InterestExpressionsTable is the backend collection for serious-mode
// interest expressions
const InterestExpressionsTable = "interest_expressions"

// Interest-expression statuses
const (
	ExpressionPending  = "pending"
	ExpressionAccepted = "accepted"
	ExpressionDeclined = "declined"
)

// SeriousProfile carries the marriage/family-oriented attributes of the
// serious matchmaking track, one-to-one with a base profile.
type SeriousProfile struct {
	ID                string   `json:"id" dynamodbav:"id" gorm:"primaryKey;size:36"`
	UserID            string   `json:"user_id" dynamodbav:"user_id" gorm:"uniqueIndex;size:36;not null"`
	Religion          string   `json:"religion,omitempty" dynamodbav:"religion,omitempty" gorm:"size:48"`
	Caste             string   `json:"caste,omitempty" dynamodbav:"caste,omitempty" gorm:"size:48"`
	MotherTongue      string   `json:"mother_tongue,omitempty" dynamodbav:"mother_tongue,omitempty" gorm:"size:48"`
	FamilyType        string   `json:"family_type,omitempty" dynamodbav:"family_type,omitempty" gorm:"size:48"`
	FatherOccupation  string   `json:"father_occupation,omitempty" dynamodbav:"father_occupation,omitempty" gorm:"size:96"`
	MotherOccupation  string   `json:"mother_occupation,omitempty" dynamodbav:"mother_occupation,omitempty" gorm:"size:96"`
	Siblings          int      `json:"siblings,omitempty" dynamodbav:"siblings,omitempty"`
	FamilyValues      string   `json:"family_values,omitempty" dynamodbav:"family_values,omitempty" gorm:"size:48"`
	AboutFamily       string   `json:"about_family,omitempty" dynamodbav:"about_family,omitempty" gorm:"type:text"`
	SalaryRange       string   `json:"salary_range,omitempty" dynamodbav:"salary_range,omitempty" gorm:"size:48"`
	Assets            string   `json:"assets,omitempty" dynamodbav:"assets,omitempty" gorm:"type:text"`
	Expectations      string   `json:"expectations,omitempty" dynamodbav:"expectations,omitempty" gorm:"type:text"`
	PartnerAgeMin     int      `json:"partner_age_min,omitempty" dynamodbav:"partner_age_min,omitempty"`
	PartnerAgeMax     int      `json:"partner_age_max,omitempty" dynamodbav:"partner_age_max,omitempty"`
	PartnerHeightMin  int      `json:"partner_height_min,omitempty" dynamodbav:"partner_height_min,omitempty"`
	PartnerHeightMax  int      `json:"partner_height_max,omitempty" dynamodbav:"partner_height_max,omitempty"`
	PartnerEducation  []string `json:"partner_education,omitempty" dynamodbav:"partner_education,omitempty" gorm:"serializer:json"`
	PartnerOccupation []string `json:"partner_occupation,omitempty" dynamodbav:"partner_occupation,omitempty" gorm:"serializer:json"`
	PartnerReligion   []string `json:"partner_religion,omitempty" dynamodbav:"partner_religion,omitempty" gorm:"serializer:json"`
	CreatedAt         string   `json:"created_at,omitempty" dynamodbav:"created_at,omitempty" gorm:"size:40"`
	UpdatedAt         string   `json:"updated_at,omitempty" dynamodbav:"updated_at,omitempty" gorm:"size:40"`
}

func (SeriousProfile) TableName() string { return SeriousProfilesTable }

// InterestExpression is the serious-mode counterpart of a swipe: an explicit
// note from sender to receiver, answered with accept or decline.
type InterestExpression struct {
	ID          string `json:"id" dynamodbav:"id" gorm:"primaryKey;size:36"`
	SenderID    string `json:"sender_id" dynamodbav:"sender_id" gorm:"size:36;not null;uniqueIndex:uq_expression_pair,priority:1"`
	ReceiverID  string `json:"receiver_id" dynamodbav:"receiver_id" gorm:"size:36;not null;uniqueIndex:uq_expression_pair,priority:2"`
	Message     string `json:"message,omitempty" dynamodbav:"message,omitempty" gorm:"type:text"`
	Status      string `json:"status" dynamodbav:"status" gorm:"size:16;not null"`
	RespondedAt string `json:"responded_at,omitempty" dynamodbav:"responded_at,omitempty" gorm:"size:40"`
	CreatedAt   string `json:"created_at,omitempty" dynamodbav:"created_at,omitempty" gorm:"size:40"`
}

func (InterestExpression) TableName() string { return InterestExpressionsTable }

// SeriousProfileWithDetails enriches a serious profile with its base profile
// and photos for display.
type SeriousProfileWithDetails struct {
	SeriousProfile
	Profile Profile     `json:"profile"`
	Photos  []UserPhoto `json:"photos"`
}

// ExpressionWithSender enriches a received expression with the sender summary.
type ExpressionWithSender struct {
	InterestExpression
	Sender   Profile `json:"sender"`
	PhotoURL string  `json:"photo_url,omitempty"`
}
