// README: Fare rate definition (flat base plus per-kilometre rate).
package fare

type Rate struct {
	BaseFare float64
	PerKm    float64
	Currency string
}

// DefaultRate matches the flat tariff the dispatch desk has always used.
var DefaultRate = Rate{BaseFare: 50, PerKm: 15, Currency: "INR"}
