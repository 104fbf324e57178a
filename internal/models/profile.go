package models

import (
	"time"

	"tvicl/server/internal/utils"
)

type Specialization string

var specializations = enum[Specialization]{"residential", "commercial", "rental", "luxury"}

func (s Specialization) IsValid() bool   { return specializations.has(s) }
func (Specialization) Options() []string { return specializations.options() }

// AgentProfile holds the professional details of a user acting as an agent.
type AgentProfile struct {
	Base                  `bson:",inline"`
	UserID                utils.SixID      `bson:"user_id" json:"userId"`
	LicenseNumber         string           `bson:"license_number" json:"licenseNumber" validate:"required"`
	AgencyName            string           `bson:"agency_name" json:"agencyName" validate:"required"`
	YearsOfExperience     int              `bson:"years_of_experience" json:"yearsOfExperience" validate:"gte=0"`
	Specializations       []Specialization `bson:"specializations" json:"specializations" validate:"omitempty,dive,enum"`
	Phone                 string           `bson:"phone" json:"phone,omitempty"`
	Address               string           `bson:"address" json:"address,omitempty"`
	ProfilePhoto          string           `bson:"profile_photo" json:"profilePhoto,omitempty"`
	Ratings               float64          `bson:"ratings" json:"ratings"`
	ReviewsCount          int              `bson:"reviews_count" json:"reviewsCount"`
	Verified              bool             `bson:"verified" json:"verified"`
	VerificationDocuments []string         `bson:"verification_documents" json:"verificationDocuments,omitempty"`
	Active                bool             `bson:"active" json:"active"`
	CreatedAt             time.Time        `bson:"created_at" json:"createdAt"`
	UpdatedAt             time.Time        `bson:"updated_at" json:"updatedAt"`
}

// EstateProfile holds the company details of a user acting as an estate.
type EstateProfile struct {
	Base                  `bson:",inline"`
	UserID                utils.SixID `bson:"user_id" json:"userId"`
	EstateName            string      `bson:"estate_name" json:"estateName" validate:"required"`
	Address               string      `bson:"address" json:"address" validate:"required"`
	ContactEmail          string      `bson:"contact_email" json:"contactEmail" validate:"required,email"`
	Phone                 string      `bson:"phone" json:"phone" validate:"required"`
	RegistrationNumber    string      `bson:"registration_number" json:"registrationNumber" validate:"required"`
	Website               string      `bson:"website" json:"website,omitempty" validate:"omitempty,url"`
	Description           string      `bson:"description" json:"description,omitempty"`
	Logo                  string      `bson:"logo" json:"logo,omitempty"`
	Verified              bool        `bson:"verified" json:"verified"`
	RegistrationDocuments []string    `bson:"registration_documents" json:"registrationDocuments,omitempty"`
	Active                bool        `bson:"active" json:"active"`
	CreatedAt             time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt             time.Time   `bson:"updated_at" json:"updatedAt"`
}
