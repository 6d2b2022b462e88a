package message

import "testing"

func TestSenderValid(t *testing.T) {
	for _, sender := range []Sender{SenderCustomer, SenderAgent, SenderSystem} {
		if !sender.Valid() {
			t.Fatalf("%q rejected", sender)
		}
	}
	for _, sender := range []Sender{"", "bot", "CUSTOMER"} {
		if sender.Valid() {
			t.Fatalf("%q accepted", sender)
		}
	}
}
