package domain

import (
	"time"
)

const (
	MinAllowedPrice = 0.01
	MaxAllowedPrice = 9999.99

	MaxImageBytes    = 100000
	MinImageCount    = 1
	MinLocationCount = 1
)

type DealStatus string

const (
	DealDraft     DealStatus = "draft"
	DealPublished DealStatus = "published"
	DealExpired   DealStatus = "expired"
)

type DealImage struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	ByteSize int64  `json:"byte_size"`
	// Remove schedules the stored blob for deferred deletion on update.
	Remove bool `json:"remove,omitempty"`
}

type Deal struct {
	ID                          int64       `json:"id"`
	Title                       string      `json:"title"`
	Description                 string      `json:"description"`
	Instructions                string      `json:"instructions"`
	Price                       float64     `json:"price"`
	MinimumPurchasesRequired    int         `json:"minimum_purchases_required"`
	MaximumPurchasesAllowed     int         `json:"maximum_purchases_allowed"`
	MaximumPurchasesPerCustomer int         `json:"maximum_purchases_per_customer"`
	StartAt                     time.Time   `json:"start_at"`
	ExpireAt                    time.Time   `json:"expire_at"`
	PublishedAt                 *time.Time  `json:"published_at,omitempty"`
	CategoryID                  int64       `json:"category_id"`
	CollectionID                *int64      `json:"collection_id,omitempty"`
	LocationIDs                 []int64     `json:"location_ids"`
	Images                      []DealImage `json:"images"`
	CreatedAt                   time.Time   `json:"created_at"`
	UpdatedAt                   time.Time   `json:"updated_at"`

	// PublishedFromCollection marks a publish initiated through the owning
	// collection. It suppresses only the collection-presence error, never
	// the location or image checks.
	PublishedFromCollection bool `json:"-"`
}

func (d *Deal) Published() bool {
	return d.PublishedAt != nil
}

func (d *Deal) Expired(now time.Time) bool {
	return d.ExpireAt.Before(now)
}

// Status collapses the nullable publish timestamp and the expiry window
// into one explicit state.
func (d *Deal) Status(now time.Time) DealStatus {
	switch {
	case d.Expired(now):
		return DealExpired
	case d.Published():
		return DealPublished
	default:
		return DealDraft
	}
}

// QuantityLeft may go negative on an oversold deal; callers display it as-is.
func (d *Deal) QuantityLeft(sold int) int {
	return d.MaximumPurchasesAllowed - sold
}

// PercentageSold is truncated to an integer. A deal without a purchase cap
// reports 0 rather than dividing by zero.
func (d *Deal) PercentageSold(sold int) int {
	if d.MaximumPurchasesAllowed == 0 {
		return 0
	}
	return int(float64(sold) / float64(d.MaximumPurchasesAllowed) * 100)
}

func (d *Deal) MinimumCriteriaMet(sold int) bool {
	return sold >= d.MinimumPurchasesRequired
}

// publishedAtChanged reports whether this save moves the publish timestamp.
func publishedAtChanged(old, updated *Deal) bool {
	switch {
	case old.PublishedAt == nil && updated.PublishedAt == nil:
		return false
	case old.PublishedAt == nil || updated.PublishedAt == nil:
		return true
	default:
		return !old.PublishedAt.Equal(*updated.PublishedAt)
	}
}

// ValidateNew checks a deal about to be created. start_at must be strictly
// in the future at validation time.
func ValidateNew(d *Deal, now time.Time) *ValidationErrors {
	errs := NewValidationErrors()
	validateFields(d, errs)

	if !d.StartAt.IsZero() && !d.StartAt.After(now) {
		errs.Add("start_at", "must be after the current time")
	}

	return errs
}

// ValidateTransition checks one mutation of an existing deal. Exactly one of
// two paths applies, keyed on whether this save moves published_at:
//
//   - moved: the deal must be publishable (locations, images, collection
//     consistency);
//   - unchanged: the deal must not already be live or expired.
func ValidateTransition(old, updated *Deal, now time.Time) *ValidationErrors {
	errs := NewValidationErrors()
	validateFields(updated, errs)

	if !updated.StartAt.IsZero() && !updated.StartAt.After(old.CreatedAt) {
		errs.Add("start_at", "must be after the deal was created")
	}

	if publishedAtChanged(old, updated) {
		checkPublishability(updated, errs)
	} else {
		checkLiveOrExpired(old, now, errs)
	}

	return errs
}

// ValidateCreated guards against clock drift between validation-time "now"
// and the persisted creation timestamp. A violation rolls the creation back.
func ValidateCreated(d *Deal) *ValidationErrors {
	errs := NewValidationErrors()
	if d.StartAt.Before(d.CreatedAt) {
		errs.Add("start_at", "cannot be less than the current time")
	}
	return errs
}

func validateFields(d *Deal, errs *ValidationErrors) {
	if d.Title == "" {
		errs.Add("title", "can't be blank")
	}
	if d.StartAt.IsZero() {
		errs.Add("start_at", "can't be blank")
	}
	if d.ExpireAt.IsZero() {
		errs.Add("expire_at", "can't be blank")
	}

	if d.Price < MinAllowedPrice {
		errs.Add("price", "must be greater than or equal to 0.01")
	}
	if d.Price > MaxAllowedPrice {
		errs.Add("price", "must be less than or equal to 9999.99")
	}

	if d.MinimumPurchasesRequired < 0 {
		errs.Add("minimum_purchases_required", "must be greater than or equal to 0")
	}
	if d.MaximumPurchasesAllowed <= d.MinimumPurchasesRequired {
		errs.Add("maximum_purchases_allowed", "must be greater than minimum_purchases_required")
	}
	if d.MaximumPurchasesPerCustomer < 0 {
		errs.Add("maximum_purchases_per_customer", "must be greater than or equal to 0")
	}
	if d.MaximumPurchasesPerCustomer > d.MaximumPurchasesAllowed {
		errs.Add("maximum_purchases_per_customer", "must be less than or equal to maximum_purchases_allowed")
	}

	if !d.StartAt.IsZero() && !d.ExpireAt.IsZero() && !d.ExpireAt.After(d.StartAt) {
		errs.Add("expire_at", "must be after start_at")
	}

	checkImageSizes(d, errs)
}

// checkImageSizes discards any attachment over the byte-size cap and records
// the violation. Runs on every save, independent of publishability.
func checkImageSizes(d *Deal, errs *ValidationErrors) {
	kept := d.Images[:0]
	for _, img := range d.Images {
		if img.ByteSize > MaxImageBytes {
			errs.Add("images", "only 100 kb image allowed")
			continue
		}
		kept = append(kept, img)
	}
	d.Images = kept
}

func checkPublishability(d *Deal, errs *ValidationErrors) {
	if len(d.LocationIDs) < MinLocationCount {
		errs.AddBase("deal must have at least one location to be published")
	}
	if imageCount(d) < MinImageCount {
		errs.AddBase("deal must have at least one image to be published")
	}
	if d.CollectionID != nil && !d.PublishedFromCollection {
		errs.AddBase("deal belongs to a collection and must be published through it")
	}
}

func checkLiveOrExpired(old *Deal, now time.Time, errs *ValidationErrors) {
	if old.Published() || old.Expired(now) {
		errs.AddBase("a live or expired deal cannot be modified")
	}
}

func imageCount(d *Deal) int {
	n := 0
	for _, img := range d.Images {
		if !img.Remove {
			n++
		}
	}
	return n
}
