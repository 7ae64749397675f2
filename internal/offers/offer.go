// Package offers holds the offer catalog domain: the model, input
// normalization, the announcement composer, the persistent store, and the
// lifecycle service that keeps the store and the announcement channel in sync.
package offers

import (
	"errors"
	"time"
)

// Offer is a sellable item listing. Price is kept as a canonical decimal
// string produced by NormalizePrice so redisplay never drifts.
type Offer struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Quantity  int       `db:"quantity"`
	Price     string    `db:"price"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`

	// AnnounceChatID and AnnounceMessageID identify the last published
	// announcement for this offer. Both are set or both are zero.
	AnnounceChatID    int64 `db:"announce_chat_id"`
	AnnounceMessageID int   `db:"announce_message_id"`
}

// Announced reports whether the offer has a bound announcement message.
func (o Offer) Announced() bool {
	return o.AnnounceChatID != 0 && o.AnnounceMessageID != 0
}

var (
	// ErrNotFound is returned when an offer id does not exist.
	ErrNotFound = errors.New("offer not found")
	// ErrInactiveOffer is returned when an operation requires an active offer.
	ErrInactiveOffer = errors.New("offer is not active")
	// ErrInvalidPrice is returned for prices that do not parse or are not positive.
	ErrInvalidPrice = errors.New("price must be a number greater than zero")
	// ErrInvalidQuantity is returned for quantities that are not whole non-negative numbers.
	ErrInvalidQuantity = errors.New("quantity must be a whole number, zero or greater")
	// ErrInvalidID is returned when offer id text is not a positive number.
	ErrInvalidID = errors.New("offer id must be a number")
	// ErrEmptyName is returned when an offer name is blank.
	ErrEmptyName = errors.New("name is required")
)

// SettingAnnounceChat is the settings key holding the announcement chat id
// configured at runtime via /setannounce.
const SettingAnnounceChat = "announce_chat_id"
