package domain

import "time"

// Trade represents a matched unit trade between a buy and a sell order.
// Price is the resting order's price in continuous mode and the uniform
// clearing price in call mode.
type Trade struct {
	ID          string    `json:"id"`
	Price       int64     `json:"price"`
	Buyer       string    `json:"buyer"`
	Seller      string    `json:"seller"`
	BuyOrderID  string    `json:"buy_order_id"`
	SellOrderID string    `json:"sell_order_id"`
	Timestamp   time.Time `json:"time"`

	// IsBuyerMaker is true when the buy order was resting in the book.
	IsBuyerMaker bool `json:"buyer_maker"`
}

// NewTrade creates a trade between two orders at price.
func NewTrade(id string, price int64, buyOrder, sellOrder *Order) *Trade {
	return &Trade{
		ID:           id,
		Price:        price,
		Buyer:        buyOrder.Identity,
		Seller:       sellOrder.Identity,
		BuyOrderID:   buyOrder.ID,
		SellOrderID:  sellOrder.ID,
		Timestamp:    time.Now(),
		IsBuyerMaker: buyOrder.Before(sellOrder),
	}
}
