package offers

import (
	"strings"
	"testing"
)

func TestAnnouncement(t *testing.T) {
	o := Offer{ID: 1, Name: "Widget", Quantity: 5, Price: "10"}
	got := Announcement(o, "LMK if interested.")
	want := "Hey! I have Widget in right now. 5 available at $10. LMK if interested."
	if got != want {
		t.Fatalf("Announcement = %q, want %q", got, want)
	}
	if !strings.Contains(got, "5 available at $10.") {
		t.Fatalf("announcement missing availability clause: %q", got)
	}
}

func TestStockList(t *testing.T) {
	list := []Offer{
		{ID: 3, Name: "Widget", Quantity: 5, Price: "10"},
		{ID: 1, Name: "Gadget", Quantity: 2, Price: "3.5"},
	}
	got := StockList(list)
	want := "Current stock:\n#3 - Widget — 5 @ $10\n#1 - Gadget — 2 @ $3.5"
	if got != want {
		t.Fatalf("StockList = %q, want %q", got, want)
	}
}

func TestStockListEmpty(t *testing.T) {
	if got := StockList(nil); got != "Current stock:" {
		t.Fatalf("StockList(nil) = %q", got)
	}
}
