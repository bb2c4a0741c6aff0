package models

import (
	"time"

	"github.com/google/uuid"
)

// Variant distinguishes help exchanges from item sharing. Both variants share
// the same post and match shape with different status labels.
type Variant string

const (
	VariantHelp Variant = "help"
	VariantItem Variant = "item"
)

// Valid reports whether v is a known variant
func (v Variant) Valid() bool {
	return v == VariantHelp || v == VariantItem
}

// PostKind is the orientation of a post
type PostKind string

const (
	PostKindRequest PostKind = "request"
	PostKindOffer   PostKind = "offer"
)

// Urgency of a help post
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// ItemCondition of a shared item
type ItemCondition string

const (
	ConditionNew     ItemCondition = "new"
	ConditionLikeNew ItemCondition = "like_new"
	ConditionGood    ItemCondition = "good"
	ConditionFair    ItemCondition = "fair"
	ConditionPoor    ItemCondition = "poor"
)

// StorageRequirement for perishable items
type StorageRequirement string

const (
	StorageRoomTemp     StorageRequirement = "room_temp"
	StorageRefrigerated StorageRequirement = "refrigerated"
	StorageFrozen       StorageRequirement = "frozen"
)

// Category is a closed enumeration per variant
type Category string

// Help categories
const (
	CategoryTransportation Category = "transportation"
	CategoryErrands        Category = "errands"
	CategoryChildcare      Category = "childcare"
	CategoryEldercare      Category = "eldercare"
	CategoryPetcare        Category = "petcare"
	CategoryHousehold      Category = "household"
	CategoryTechSupport    Category = "tech_support"
	CategoryLanguage       Category = "language"
	CategoryAdministrative Category = "administrative"
	CategoryEmotional      Category = "emotional"
	CategoryOther          Category = "other"
)

// Item categories. household and other are shared with help.
const (
	CategoryFood        Category = "food"
	CategoryClothing    Category = "clothing"
	CategoryBabyKids    Category = "baby_kids"
	CategoryElectronics Category = "electronics"
	CategoryFurniture   Category = "furniture"
	CategoryHygiene     Category = "hygiene"
	CategoryMedical     Category = "medical"
)

var categories = map[Variant][]Category{
	VariantHelp: {
		CategoryTransportation, CategoryErrands, CategoryChildcare, CategoryEldercare,
		CategoryPetcare, CategoryHousehold, CategoryTechSupport, CategoryLanguage,
		CategoryAdministrative, CategoryEmotional, CategoryOther,
	},
	VariantItem: {
		CategoryFood, CategoryClothing, CategoryHousehold, CategoryBabyKids,
		CategoryElectronics, CategoryFurniture, CategoryHygiene, CategoryMedical,
		CategoryOther,
	},
}

// Categories returns the closed category list of a variant
func Categories(v Variant) []Category {
	return append([]Category(nil), categories[v]...)
}

// ValidCategory reports whether c belongs to the variant's enumeration
func ValidCategory(v Variant, c Category) bool {
	for _, known := range categories[v] {
		if known == c {
			return true
		}
	}
	return false
}

// IsPerishable reports whether posts in this category carry food safety metadata
func (c Category) IsPerishable() bool {
	return c == CategoryFood
}

// FoodSafety is the optional structured metadata of perishable items
type FoodSafety struct {
	ExpiryDate  *time.Time         `json:"expiryDate,omitempty" db:"expiry_date"`
	Allergens   []string           `json:"allergens,omitempty" db:"allergens"`
	Storage     StorageRequirement `json:"storage,omitempty" db:"storage"`
	DietaryInfo string             `json:"dietaryInfo,omitempty" db:"dietary_info"`
	IsHomemade  bool               `json:"isHomemade" db:"is_homemade"`
}

// Post is a standing need or offer owned by one member
type Post struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	OrgID          uuid.UUID     `json:"orgId" db:"org_id"`
	Variant        Variant       `json:"variant" db:"variant"`
	OwnerID        uuid.UUID     `json:"ownerId" db:"owner_id"`
	Kind           PostKind      `json:"kind" db:"kind"`
	Category       Category      `json:"category" db:"category"`
	Title          string        `json:"title" db:"title"`
	Description    string        `json:"description" db:"description"`
	Urgency        Urgency       `json:"urgency,omitempty" db:"urgency"`
	Condition      ItemCondition `json:"condition,omitempty" db:"condition"`
	Quantity       int           `json:"quantity" db:"quantity"`
	ApproxLocation string        `json:"approxLocation,omitempty" db:"approx_location"`
	Availability   string        `json:"availability,omitempty" db:"availability"`
	Pickup         string        `json:"pickupInstructions,omitempty" db:"pickup_instructions"`
	Safety         FoodSafety    `json:"safety"`
	Status         PostStatus    `json:"status" db:"status"`
	CreatedAt      time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time     `json:"updatedAt" db:"updated_at"`
}

// IsOpen reports whether the post accepts new matches
func (p *Post) IsOpen() bool {
	return p.Status == OpenStatus(p.Variant)
}

// IsExpired reports whether a perishable item is past its expiry date
func (p *Post) IsExpired(now time.Time) bool {
	if p.Safety.ExpiryDate == nil {
		return false
	}
	return p.Safety.ExpiryDate.Before(startOfDay(now))
}

// EntityName is the label used in transition errors and audit rows
func (p *Post) EntityName() string {
	return string(p.Variant) + "_post"
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PostInput carries the owner-editable fields of a post
type PostInput struct {
	Kind           PostKind           `json:"kind" validate:"required,oneof=request offer"`
	Category       Category           `json:"category" validate:"required"`
	Title          string             `json:"title" validate:"required,max=255"`
	Description    string             `json:"description" validate:"required"`
	Urgency        Urgency            `json:"urgency" validate:"omitempty,oneof=low normal high"`
	Condition      ItemCondition      `json:"condition" validate:"omitempty,oneof=new like_new good fair poor"`
	Quantity       int                `json:"quantity" validate:"omitempty,min=1"`
	ApproxLocation string             `json:"approxLocation" validate:"max=255"`
	Availability   string             `json:"availability" validate:"max=255"`
	Pickup         string             `json:"pickupInstructions"`
	ExpiryDate     *time.Time         `json:"expiryDate"`
	Allergens      []string           `json:"allergens"`
	Storage        StorageRequirement `json:"storage" validate:"omitempty,oneof=room_temp refrigerated frozen"`
	DietaryInfo    string             `json:"dietaryInfo" validate:"max=255"`
	IsHomemade     bool               `json:"isHomemade"`
}

// Apply copies the input onto the post, filling variant defaults
func (in *PostInput) Apply(p *Post) {
	p.Kind = in.Kind
	p.Category = in.Category
	p.Title = in.Title
	p.Description = in.Description
	p.ApproxLocation = in.ApproxLocation
	p.Availability = in.Availability
	p.Pickup = in.Pickup
	p.Condition = in.Condition
	p.Urgency = in.Urgency
	if p.Variant == VariantHelp && p.Urgency == "" {
		p.Urgency = UrgencyNormal
	}
	p.Quantity = in.Quantity
	if p.Quantity < 1 {
		p.Quantity = 1
	}
	p.Safety = FoodSafety{
		ExpiryDate:  in.ExpiryDate,
		Allergens:   in.Allergens,
		Storage:     in.Storage,
		DietaryInfo: in.DietaryInfo,
		IsHomemade:  in.IsHomemade,
	}
}

// PostFilter narrows post listings. Zero values are ignored.
type PostFilter struct {
	OrgID    uuid.UUID
	Variant  Variant
	Status   PostStatus
	Kind     PostKind
	Category Category
	OwnerID  uuid.UUID
	Limit    int
	Offset   int
}
