package offers

import (
	"fmt"
	"strings"
)

// Announcement renders the channel post for a single offer. The wording is
// fixed; contact is the configurable suffix appended to every announcement.
func Announcement(o Offer, contact string) string {
	return fmt.Sprintf("Hey! I have %s in right now. %d available at $%s. %s",
		o.Name, o.Quantity, o.Price, contact)
}

// OfferLine renders one row of the stock listing.
func OfferLine(o Offer) string {
	return fmt.Sprintf("#%d - %s — %d @ $%s", o.ID, o.Name, o.Quantity, o.Price)
}

// StockList renders the stock listing with its header line.
func StockList(list []Offer) string {
	lines := make([]string, 0, len(list)+1)
	lines = append(lines, "Current stock:")
	for _, o := range list {
		lines = append(lines, OfferLine(o))
	}
	return strings.Join(lines, "\n")
}
