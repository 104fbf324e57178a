package models

import "slices"

// enum is the closed value set of a string enumeration.
type enum[T ~string] []T

func (e enum[T]) has(v T) bool { return slices.Contains(e, v) }

func (e enum[T]) options() []string {
	out := make([]string, len(e))
	for i, v := range e {
		out[i] = string(v)
	}
	return out
}

type PropertyType string

const (
	PropertyTypeSelfContained      PropertyType = "Self Contained"
	PropertyTypeMiniFlat           PropertyType = "Mini Flat"
	PropertyTypeFlatApartment      PropertyType = "Flat/Apartment"
	PropertyTypeBungalow           PropertyType = "Bungalow"
	PropertyTypeDetachedDuplex     PropertyType = "Detached Duplex"
	PropertyTypeSemiDetachedDuplex PropertyType = "Semi-Detached Duplex"
	PropertyTypeTerracedDuplex     PropertyType = "Terraced Duplex"
	PropertyTypeMansion            PropertyType = "Mansion"
	PropertyTypeBlockOfFlats       PropertyType = "Block of Flats"
	PropertyTypeCommercial         PropertyType = "Commercial"
	PropertyTypePlot               PropertyType = "Plot"
	PropertyTypeOffice             PropertyType = "Office"
	PropertyTypeWarehouse          PropertyType = "Warehouse"
	PropertyTypeServicedApartment  PropertyType = "Serviced Apartment"
)

var propertyTypes = enum[PropertyType]{
	PropertyTypeSelfContained, PropertyTypeMiniFlat, PropertyTypeFlatApartment, PropertyTypeBungalow,
	PropertyTypeDetachedDuplex, PropertyTypeSemiDetachedDuplex, PropertyTypeTerracedDuplex, PropertyTypeMansion,
	PropertyTypeBlockOfFlats, PropertyTypeCommercial, PropertyTypePlot, PropertyTypeOffice,
	PropertyTypeWarehouse, PropertyTypeServicedApartment,
}

// ApartmentLikeTypes are the property types that must carry a flatType.
var ApartmentLikeTypes = []PropertyType{PropertyTypeFlatApartment, PropertyTypeServicedApartment, PropertyTypeBlockOfFlats}

func (t PropertyType) IsValid() bool         { return propertyTypes.has(t) }
func (PropertyType) Options() []string       { return propertyTypes.options() }
func (t PropertyType) IsApartmentLike() bool { return slices.Contains(ApartmentLikeTypes, t) }

type FlatType string

var flatTypes = enum[FlatType]{"Studio", "1 Bedroom", "2 Bedroom", "3 Bedroom", "4 Bedroom", "5+ Bedroom"}

func (t FlatType) IsValid() bool   { return flatTypes.has(t) }
func (FlatType) Options() []string { return flatTypes.options() }

type ListingType string

const (
	ListingTypeForSale  ListingType = "For Sale"
	ListingTypeForRent  ListingType = "For Rent"
	ListingTypeShortLet ListingType = "Short Let"
)

var listingTypes = enum[ListingType]{ListingTypeForSale, ListingTypeForRent, ListingTypeShortLet}

func (t ListingType) IsValid() bool   { return listingTypes.has(t) }
func (ListingType) Options() []string { return listingTypes.options() }

type TransactionType string

var transactionTypes = enum[TransactionType]{"Off Plan", "Outright", "Installments", "Mortgage", "Rent to Own"}

func (t TransactionType) IsValid() bool   { return transactionTypes.has(t) }
func (TransactionType) Options() []string { return transactionTypes.options() }

type FurnishingStatus string

var furnishingStatuses = enum[FurnishingStatus]{"Unfurnished", "Semi-Furnished", "Fully Furnished"}

func (s FurnishingStatus) IsValid() bool   { return furnishingStatuses.has(s) }
func (FurnishingStatus) Options() []string { return furnishingStatuses.options() }

type PropertyCondition string

var propertyConditions = enum[PropertyCondition]{"New", "Excellent", "Good", "Needs Renovation"}

func (c PropertyCondition) IsValid() bool   { return propertyConditions.has(c) }
func (PropertyCondition) Options() []string { return propertyConditions.options() }

type PossessionStatus string

var possessionStatuses = enum[PossessionStatus]{"Ready to Move", "Under Construction"}

func (s PossessionStatus) IsValid() bool   { return possessionStatuses.has(s) }
func (PossessionStatus) Options() []string { return possessionStatuses.options() }

type ContactRole string

var contactRoles = enum[ContactRole]{"Owner", "Agent", "Builder", "Realtor"}

func (r ContactRole) IsValid() bool   { return contactRoles.has(r) }
func (ContactRole) Options() []string { return contactRoles.options() }

type AreaUnit string

const AreaUnitSqft AreaUnit = "sqft"

var areaUnits = enum[AreaUnit]{AreaUnitSqft, "sqm", "sqyd"}

func (u AreaUnit) IsValid() bool   { return areaUnits.has(u) }
func (AreaUnit) Options() []string { return areaUnits.options() }

type PaymentPlanType string

const PaymentPlanMilestone PaymentPlanType = "Milestone"

var paymentPlanTypes = enum[PaymentPlanType]{"Deposit", PaymentPlanMilestone, "Monthly", "Balloon"}

func (t PaymentPlanType) IsValid() bool   { return paymentPlanTypes.has(t) }
func (PaymentPlanType) Options() []string { return paymentPlanTypes.options() }

// Frequency is shared by rent and service charge schedules.
type Frequency string

const FrequencyMonthly Frequency = "Monthly"

var frequencies = enum[Frequency]{FrequencyMonthly, "Quarterly", "Yearly"}

func (f Frequency) IsValid() bool   { return frequencies.has(f) }
func (Frequency) Options() []string { return frequencies.options() }

type PreferredTenants string

var preferredTenants = enum[PreferredTenants]{"Anyone", "Family", "Bachelor", "Company"}

func (p PreferredTenants) IsValid() bool   { return preferredTenants.has(p) }
func (PreferredTenants) Options() []string { return preferredTenants.options() }

type WaterSupply string

const WaterSupplyMunicipal WaterSupply = "Municipal"

var waterSupplies = enum[WaterSupply]{"Borehole", "Water Corporation", "Bottled/Delivered", WaterSupplyMunicipal, "Both"}

func (w WaterSupply) IsValid() bool   { return waterSupplies.has(w) }
func (WaterSupply) Options() []string { return waterSupplies.options() }

type PowerBackup string

const PowerBackupNone PowerBackup = "None"

var powerBackups = enum[PowerBackup]{"Generator", "Inverter", "Full", "Partial", PowerBackupNone}

func (p PowerBackup) IsValid() bool   { return powerBackups.has(p) }
func (PowerBackup) Options() []string { return powerBackups.options() }

type GasSupply string

var gasSupplies = enum[GasSupply]{"Cylinder", "Piped Gas", "None"}

func (g GasSupply) IsValid() bool   { return gasSupplies.has(g) }
func (GasSupply) Options() []string { return gasSupplies.options() }

type Facing string

var facings = enum[Facing]{"North", "South", "East", "West", "North-East", "North-West", "South-East", "South-West"}

func (f Facing) IsValid() bool   { return facings.has(f) }
func (Facing) Options() []string { return facings.options() }

type MediaType string

var mediaTypes = enum[MediaType]{"image", "video", "document"}

func (t MediaType) IsValid() bool   { return mediaTypes.has(t) }
func (MediaType) Options() []string { return mediaTypes.options() }

type MediaSubCategory string

var mediaSubCategories = enum[MediaSubCategory]{"cover", "gallery", "floorPlan", "virtualTour", "video", "legal", "other"}

func (c MediaSubCategory) IsValid() bool   { return mediaSubCategories.has(c) }
func (MediaSubCategory) Options() []string { return mediaSubCategories.options() }

type AdditionalRoom string

var additionalRooms = enum[AdditionalRoom]{"Servant Room", "Study Room", "Pooja Room", "Store Room", "Home Theater", "Terrace"}

func (r AdditionalRoom) IsValid() bool   { return additionalRooms.has(r) }
func (AdditionalRoom) Options() []string { return additionalRooms.options() }

// ApprovalStatus transitions freely between all three states.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

// PropertyCounter names an engagement counter on a property.
type PropertyCounter string

const (
	CounterViews     PropertyCounter = "views"
	CounterSaves     PropertyCounter = "saves"
	CounterShares    PropertyCounter = "shares"
	CounterInquiries PropertyCounter = "inquiries"
)

var propertyCounters = enum[PropertyCounter]{CounterViews, CounterSaves, CounterShares, CounterInquiries}

func (c PropertyCounter) IsValid() bool { return propertyCounters.has(c) }
