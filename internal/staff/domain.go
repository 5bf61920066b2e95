package staff

import "time"

// Status is the employment state of a staff record.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusReleased Status = "released"
	StatusRetired  Status = "retired"
)

// Staff is a directory record. It is the subject of access log entries.
type Staff struct {
	ID                 int64     `json:"id"`
	RegistrationNumber string    `json:"registrationNumber"`
	FirstName          string    `json:"firstName"`
	LastName           string    `json:"lastName"`
	Email              string    `json:"email,omitempty"`
	Phone              string    `json:"phone"`
	Gender             string    `json:"gender"`
	Department         string    `json:"department"`
	Position           string    `json:"position"`
	EmploymentType     string    `json:"employmentType"`
	DateOfJoining      string    `json:"dateOfJoining"`
	Status             Status    `json:"status"`
	PINHash            string    `json:"-"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// FullName joins first and last name.
func (s Staff) FullName() string {
	return s.FirstName + " " + s.LastName
}

// Department groups staff records.
type Department struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	StaffCount  int       `json:"staffCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RecentWindow is how far back Stats counts new records.
const RecentWindow = 30 * 24 * time.Hour

// Stats summarises the directory.
type Stats struct {
	TotalStaff       int `json:"totalStaff"`
	ActiveStaff      int `json:"activeStaff"`
	TotalDepartments int `json:"totalDepartments"`
	RecentAdditions  int `json:"recentAdditions"`
}

// CreateInput carries the fields of a new staff record.
type CreateInput struct {
	RegistrationNumber string `json:"registrationNumber" validate:"required,max=50"`
	FirstName          string `json:"firstName" validate:"required,max=100"`
	LastName           string `json:"lastName" validate:"required,max=100"`
	Email              string `json:"email" validate:"omitempty,email"`
	Phone              string `json:"phone" validate:"required,max=30"`
	Gender             string `json:"gender" validate:"required,oneof=male female"`
	Department         string `json:"department" validate:"required"`
	Position           string `json:"position" validate:"required"`
	EmploymentType     string `json:"employmentType" validate:"required"`
	DateOfJoining      string `json:"dateOfJoining" validate:"required,datetime=2006-01-02"`
	Status             Status `json:"status" validate:"omitempty,oneof=active inactive released retired"`
}

// UpdateInput carries a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	FirstName      *string `json:"firstName" validate:"omitempty,max=100"`
	LastName       *string `json:"lastName" validate:"omitempty,max=100"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Phone          *string `json:"phone" validate:"omitempty,max=30"`
	Department     *string `json:"department"`
	Position       *string `json:"position"`
	EmploymentType *string `json:"employmentType"`
	Status         *Status `json:"status" validate:"omitempty,oneof=active inactive released retired"`
}

// Empty reports whether the update changes nothing.
func (u UpdateInput) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil && u.Phone == nil &&
		u.Department == nil && u.Position == nil && u.EmploymentType == nil && u.Status == nil
}

// ListFilter narrows staff listings. Search wins over Department.
type ListFilter struct {
	Department string
	Search     string
}

// DepartmentInput carries a new department.
type DepartmentInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Icon        string `json:"icon" validate:"required,max=50"`
	Color       string `json:"color" validate:"required,max=30"`
}

// Verification is the public projection returned by staff verification.
type Verification struct {
	Valid      bool          `json:"valid"`
	Staff      *VerifiedCard `json:"staff,omitempty"`
	VerifiedAt time.Time     `json:"verifiedAt"`
}

// VerifiedCard lists the fields safe to show to anonymous verifiers.
type VerifiedCard struct {
	ID                 int64  `json:"id"`
	RegistrationNumber string `json:"registrationNumber"`
	FullName           string `json:"fullName"`
	Department         string `json:"department"`
	Position           string `json:"position"`
	Status             Status `json:"status"`
	DateOfJoining      string `json:"dateOfJoining"`
}
