package models

import "time"

const (
	StudentTable   = "students"
	EquipmentTable = "equipment"
	StaffTable     = "staff"
)

// 年级范围
const (
	YearLevelMin = 1
	YearLevelMax = 5
)

type StudentStatus string

const (
	StudentActive    StudentStatus = "active"
	StudentInactive  StudentStatus = "inactive"
	StudentGraduated StudentStatus = "graduated"
)

func (s StudentStatus) Valid() bool {
	switch s {
	case StudentActive, StudentInactive, StudentGraduated:
		return true
	}
	return false
}

type Student struct {
	ID        string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FirstName string        `gorm:"size:50;not null" json:"first_name"`
	LastName  string        `gorm:"size:50;not null" json:"last_name"`
	Program   string        `gorm:"size:100;index" json:"program"`
	YearLevel *int          `json:"year_level,omitempty"`
	Email     string        `gorm:"uniqueIndex;size:120;not null" json:"email"`
	Status    StudentStatus `gorm:"size:20;not null;default:'active'" json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (Student) TableName() string { return StudentTable }

func (s Student) FullName() string { return s.FirstName + " " + s.LastName }

// Condition 设备成色
type Condition string

const (
	ConditionExcellent Condition = "Excellent"
	ConditionGood      Condition = "Good"
	ConditionFair      Condition = "Fair"
	ConditionPoor      Condition = "Poor"
	ConditionDamaged   Condition = "Damaged"
	ConditionLost      Condition = "Lost"
)

// Conditions is the ordered list served by the filters endpoint.
var Conditions = []Condition{ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor, ConditionDamaged}

func (c Condition) Valid() bool {
	for _, v := range Conditions {
		if c == v {
			return true
		}
	}
	return c == ConditionLost
}

type Availability string

const (
	Available Availability = "Available"
	OnLoan    Availability = "On Loan"
	Lost      Availability = "Lost"
)

func (a Availability) Valid() bool {
	switch a {
	case Available, OnLoan, Lost:
		return true
	}
	return false
}

type Equipment struct {
	ID                 string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name               string       `gorm:"size:100;not null;index" json:"name"`
	Model              string       `gorm:"size:100" json:"model"`
	Category           string       `gorm:"size:50;index" json:"category"`
	SerialNumber       *string      `gorm:"uniqueIndex;size:100" json:"serial_number,omitempty"`
	Condition          Condition    `gorm:"size:20;not null;default:'Good'" json:"condition"`
	AvailabilityStatus Availability `gorm:"size:20;not null;default:'Available';index" json:"availability_status"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func (Equipment) TableName() string { return EquipmentTable }

type Staff struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:120;not null" json:"email"`
	Role      string    `gorm:"size:50;not null;default:'approver'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (Staff) TableName() string { return StaffTable }
