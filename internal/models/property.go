package models

import (
	"time"

	"tvicl/server/internal/utils"
)

// Address of a property. Country falls back to the configured default.
type Address struct {
	Street     string `bson:"street" json:"street,omitempty"`
	Area       string `bson:"area" json:"area" validate:"required"`
	City       string `bson:"city" json:"city" validate:"required"`
	State      string `bson:"state" json:"state" validate:"required"`
	LGA        string `bson:"lga" json:"lga,omitempty"`
	PostalCode string `bson:"postal_code" json:"postalCode,omitempty"`
	Country    string `bson:"country" json:"country"`
	Landmark   string `bson:"landmark" json:"landmark,omitempty"`
}

// GeoPoint is a GeoJSON point; coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type" validate:"omitempty,eq=Point"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates" validate:"len=2"`
}

type Price struct {
	Amount     *float64 `bson:"amount" json:"amount" validate:"required,gte=0"`
	Currency   string   `bson:"currency" json:"currency"`
	Negotiable bool     `bson:"negotiable" json:"negotiable"`
}

// AmountValue returns the price amount, zero when unset.
func (p Price) AmountValue() float64 {
	if p.Amount == nil {
		return 0
	}
	return *p.Amount
}

type Area struct {
	Value *float64 `bson:"value" json:"value,omitempty" validate:"omitempty,gte=0"`
	Unit  AreaUnit `bson:"unit" json:"unit" validate:"omitempty,enum"`
}

type PaymentPlan struct {
	Name        string          `bson:"name" json:"name,omitempty"`
	Type        PaymentPlanType `bson:"type" json:"type" validate:"omitempty,enum"`
	Amount      *float64        `bson:"amount" json:"amount,omitempty" validate:"omitempty,gte=0"`
	Currency    string          `bson:"currency" json:"currency"`
	DueInMonths *int            `bson:"due_in_months" json:"dueInMonths,omitempty"`
}

type ServiceCharge struct {
	Amount    *float64  `bson:"amount" json:"amount,omitempty" validate:"omitempty,gte=0"`
	Frequency Frequency `bson:"frequency" json:"frequency,omitempty" validate:"omitempty,enum"`
}

type RentalDetails struct {
	DepositAmount       *float64         `bson:"deposit_amount" json:"depositAmount,omitempty" validate:"omitempty,gte=0"`
	RentFrequency       Frequency        `bson:"rent_frequency" json:"rentFrequency" validate:"omitempty,enum"`
	LeaseDurationMonths *int             `bson:"lease_duration_months" json:"leaseDurationMonths,omitempty" validate:"omitempty,gte=0"`
	LockInPeriodMonths  *int             `bson:"lock_in_period_months" json:"lockInPeriodMonths,omitempty" validate:"omitempty,gte=0"`
	PetsAllowed         bool             `bson:"pets_allowed" json:"petsAllowed"`
	PreferredTenants    PreferredTenants `bson:"preferred_tenants" json:"preferredTenants,omitempty" validate:"omitempty,enum"`
	ServiceCharge       *ServiceCharge   `bson:"service_charge" json:"serviceCharge,omitempty"`
	AgencyFeePercent    *float64         `bson:"agency_fee_percent" json:"agencyFeePercent,omitempty" validate:"omitempty,gte=0,lte=100"`
	CautionFee          *float64         `bson:"caution_fee" json:"cautionFee,omitempty" validate:"omitempty,gte=0"`
}

type Utilities struct {
	WaterSupply WaterSupply `bson:"water_supply" json:"waterSupply" validate:"omitempty,enum"`
	PowerBackup PowerBackup `bson:"power_backup" json:"powerBackup" validate:"omitempty,enum"`
	Gas         GasSupply   `bson:"gas" json:"gas,omitempty" validate:"omitempty,enum"`
}

type Media struct {
	URL         string           `bson:"url" json:"url" validate:"required,url"`
	Type        MediaType        `bson:"type" json:"type" validate:"required,enum"`
	Category    string           `bson:"category" json:"category" validate:"required"`
	SubCategory MediaSubCategory `bson:"sub_category" json:"subCategory" validate:"required,enum"`
	Caption     string           `bson:"caption" json:"caption,omitempty"`
	IsPrimary   bool             `bson:"is_primary" json:"isPrimary"`
	UploadedAt  *time.Time       `bson:"uploaded_at" json:"uploadedAt,omitempty"`
}

type FloorPlan struct {
	URL string `bson:"url" json:"url,omitempty" validate:"omitempty,url"`
}

type NearbyPlace struct {
	Name     string `bson:"name" json:"name" validate:"required"`
	Distance string `bson:"distance" json:"distance,omitempty"`
	Type     string `bson:"type,omitempty" json:"type,omitempty"`
}

type NearbyPlaces struct {
	Schools         []NearbyPlace `bson:"schools" json:"schools,omitempty" validate:"omitempty,dive"`
	Hospitals       []NearbyPlace `bson:"hospitals" json:"hospitals,omitempty" validate:"omitempty,dive"`
	Transport       []NearbyPlace `bson:"transport" json:"transport,omitempty" validate:"omitempty,dive"`
	ShoppingCenters []NearbyPlace `bson:"shopping_centers" json:"shoppingCenters,omitempty" validate:"omitempty,dive"`
	Parks           []NearbyPlace `bson:"parks" json:"parks,omitempty" validate:"omitempty,dive"`
}

type LegalDocument struct {
	Present    bool       `bson:"present" json:"present"`
	URL        string     `bson:"url" json:"url,omitempty" validate:"omitempty,url"`
	VerifiedAt *time.Time `bson:"verified_at" json:"verifiedAt,omitempty"`
}

type LegalDocuments struct {
	COfO             *LegalDocument `bson:"c_of_o" json:"cOfO,omitempty"`
	GovernorsConsent *LegalDocument `bson:"governors_consent" json:"governorsConsent,omitempty"`
	SurveyPlan       *LegalDocument `bson:"survey_plan" json:"surveyPlan,omitempty"`
	DeedOfAssignment *LegalDocument `bson:"deed_of_assignment" json:"deedOfAssignment,omitempty"`
	Excision         *LegalDocument `bson:"excision" json:"excision,omitempty"`
}

type ContactPerson struct {
	Name  string      `bson:"name" json:"name" validate:"required"`
	Phone string      `bson:"phone" json:"phone" validate:"required"`
	Email string      `bson:"email" json:"email" validate:"required,email"`
	Role  ContactRole `bson:"role" json:"role" validate:"required,enum"`
}

// PropertyDetails is the owner-editable part of a listing: the shape accepted on
// create and update and validated as a whole. Fields are stored without omitempty
// so an update can overwrite every detail field with a single $set.
type PropertyDetails struct {
	Title             string            `bson:"title" json:"title" validate:"required,max=250"`
	Description       string            `bson:"description" json:"description" validate:"required,max=5000"`
	PropertyType      PropertyType      `bson:"property_type" json:"propertyType" validate:"required,enum"`
	FlatType          FlatType          `bson:"flat_type" json:"flatType,omitempty" validate:"omitempty,enum"`
	ListingType       ListingType       `bson:"listing_type" json:"listingType" validate:"required,enum"`
	TransactionType   TransactionType   `bson:"transaction_type" json:"transactionType,omitempty" validate:"omitempty,enum"`
	FurnishingStatus  FurnishingStatus  `bson:"furnishing_status" json:"furnishingStatus" validate:"required,enum"`
	PropertyCondition PropertyCondition `bson:"property_condition" json:"propertyCondition" validate:"required,enum"`
	PossessionStatus  PossessionStatus  `bson:"possession_status" json:"possessionStatus" validate:"required,enum"`
	AvailableFrom     *time.Time        `bson:"available_from" json:"availableFrom,omitempty"`

	Address  Address   `bson:"address" json:"address"`
	Location *GeoPoint `bson:"location" json:"location,omitempty"`

	Bedrooms    int  `bson:"bedrooms" json:"bedrooms" validate:"gte=0"`
	Bathrooms   int  `bson:"bathrooms" json:"bathrooms" validate:"gte=0"`
	Kitchens    *int `bson:"kitchens" json:"kitchens,omitempty" validate:"omitempty,gte=0"`
	Balconies   int  `bson:"balconies" json:"balconies" validate:"gte=0"`
	Floor       *int `bson:"floor" json:"floor,omitempty"`
	TotalFloors *int `bson:"total_floors" json:"totalFloors,omitempty" validate:"omitempty,gte=0"`

	FloorSize  *Area `bson:"floor_size" json:"floorSize,omitempty"`
	CarpetArea *Area `bson:"carpet_area" json:"carpetArea,omitempty"`

	Price         Price          `bson:"price" json:"price"`
	PaymentPlans  []PaymentPlan  `bson:"payment_plans" json:"paymentPlans,omitempty" validate:"omitempty,dive"`
	RentalDetails *RentalDetails `bson:"rental_details" json:"rentalDetails,omitempty"`

	Amenities []string   `bson:"amenities" json:"amenities"`
	Utilities *Utilities `bson:"utilities" json:"utilities,omitempty"`
	Facing    Facing     `bson:"facing" json:"facing,omitempty" validate:"omitempty,enum"`

	Media           []Media          `bson:"media" json:"media" validate:"omitempty,dive"`
	FloorPlan       *FloorPlan       `bson:"floor_plan" json:"floorPlan,omitempty"`
	NearbyPlaces    *NearbyPlaces    `bson:"nearby_places" json:"nearbyPlaces,omitempty"`
	Highlights      []string         `bson:"highlights" json:"highlights,omitempty"`
	AdditionalRooms []AdditionalRoom `bson:"additional_rooms" json:"additionalRooms,omitempty" validate:"omitempty,dive,enum"`
	LegalDocuments  *LegalDocuments  `bson:"legal_documents" json:"legalDocuments,omitempty"`
	YearBuilt       *int             `bson:"year_built" json:"yearBuilt,omitempty"`

	ContactPerson []ContactPerson `bson:"contact_person" json:"contactPerson" validate:"required,min=1,dive"`
	Tags          []string        `bson:"tags" json:"tags"`
}

// Property is a stored listing. PropertyID and Slug are assigned once at creation.
type Property struct {
	Base            `bson:",inline"`
	PropertyID      string `bson:"property_id" json:"propertyId"`
	Slug            string `bson:"slug" json:"slug"`
	PropertyDetails `bson:",inline"`

	Owner utils.SixID `bson:"owner" json:"owner"`

	IsVerified      bool           `bson:"is_verified" json:"isVerified"`
	VerifiedAt      *time.Time     `bson:"verified_at,omitempty" json:"verifiedAt,omitempty"`
	ApprovalStatus  ApprovalStatus `bson:"approval_status" json:"approvalStatus"`
	RejectionReason string         `bson:"rejection_reason,omitempty" json:"rejectionReason,omitempty"`

	IsDeleted bool       `bson:"is_deleted" json:"isDeleted"`
	DeletedAt *time.Time `bson:"deleted_at" json:"deletedAt,omitempty"`

	Views     int64 `bson:"views" json:"views"`
	Saves     int64 `bson:"saves" json:"saves"`
	Shares    int64 `bson:"shares" json:"shares"`
	Inquiries int64 `bson:"inquiries" json:"inquiries"`

	LastModifiedBy utils.SixID `bson:"last_modified_by" json:"lastModifiedBy"`
	LastModifiedAt time.Time   `bson:"last_modified_at" json:"lastModifiedAt"`
	CreatedAt      time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time   `bson:"updated_at" json:"updatedAt"`
}
