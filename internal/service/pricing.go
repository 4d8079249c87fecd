package service

import "github.com/shopspring/decimal"

var (
	discountFactor = decimal.NewFromFloat(0.95)
	baggageFactor  = decimal.NewFromFloat(0.1)
)

// BookingTotal prices a booking: fare per adult seat, 95% of fare per
// discounted seat, plus one tenth of the fare per extra bag. Rounded
// to 2 decimals.
func BookingTotal(fare decimal.Decimal, adults, discount, bags int) decimal.Decimal {
	seats := decimal.NewFromInt(int64(adults)).
		Add(discountFactor.Mul(decimal.NewFromInt(int64(discount)))).
		Add(baggageFactor.Mul(decimal.NewFromInt(int64(bags))))
	return fare.Mul(seats).Round(2)
}

// BaggageSurcharge is the price of extra bags on a ticket.
func BaggageSurcharge(fare decimal.Decimal, bags int) decimal.Decimal {
	return fare.Mul(baggageFactor).Mul(decimal.NewFromInt(int64(bags))).Round(2)
}

// TicketValue is the amount credited back when a ticket is cancelled:
// its fare plus the baggage surcharge.
func TicketValue(fare decimal.Decimal, bags int) decimal.Decimal {
	return fare.Add(BaggageSurcharge(fare, bags)).Round(2)
}
