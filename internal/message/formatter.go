package message

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	DefaultPlatformName   = "Homly"
	DefaultCurrencySymbol = "₹"
	DefaultTimezone       = "Asia/Kolkata"

	// scheduledLayout renders as "Jan 2, 2006, 03:04 PM".
	scheduledLayout = "Jan 2, 2006, 03:04 PM"
	shortCodeLength = 8
	freeDelivery    = "FREE (free delivery applied)"
)

// Formatter renders notification inputs into Telegram HTML text. It holds
// no mutable state; one Formatter may be shared across goroutines.
type Formatter struct {
	platformName   string
	currencySymbol string
	location       *time.Location
}

// Options configures a Formatter. Zero values select the defaults.
type Options struct {
	PlatformName   string
	CurrencySymbol string
	Location       *time.Location
}

// NewFormatter creates a Formatter from opts.
func NewFormatter(opts Options) *Formatter {
	f := &Formatter{
		platformName:   firstNonEmpty(DefaultPlatformName, opts.PlatformName),
		currencySymbol: firstNonEmpty(DefaultCurrencySymbol, opts.CurrencySymbol),
		location:       opts.Location,
	}
	if f.location == nil {
		f.location = DefaultLocation()
	}
	return f
}

// DefaultLocation returns Asia/Kolkata, or a fixed +05:30 zone when the
// tz database is unavailable.
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

// ShortCode returns the trailing eight characters of id, upper-cased.
func ShortCode(id string) string {
	runes := []rune(id)
	if len(runes) > shortCodeLength {
		runes = runes[len(runes)-shortCodeLength:]
	}
	return strings.ToUpper(string(runes))
}

// FormatOrderMessage renders an order notification. It returns a
// contract violation when the id, item list or total is missing.
func (f *Formatter) FormatOrderMessage(order *OrderNotificationInput) (string, error) {
	if err := order.Validate(); err != nil {
		return "", err
	}

	addr := order.ShippingAddress
	var userName string
	if order.User != nil {
		userName = order.User.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🛒 <b>NEW ORDER #%s</b>\n\n", esc(ShortCode(order.ID)))
	fmt.Fprintf(&b, "👤 <b>Customer:</b> %s\n", esc(firstNonEmpty("Customer", addr.Name, userName)))
	fmt.Fprintf(&b, "📞 <b>Phone:</b> %s\n", esc(firstNonEmpty("N/A", addr.Mobile)))
	fmt.Fprintf(&b, "📍 <b>Address:</b> %s\n", esc(formatAddress(addr)))
	fmt.Fprintf(&b, "🕒 <b>Delivery Time:</b> %s\n\n", f.formatScheduled(order.ScheduledAt))

	b.WriteString("📦 <b>Items:</b>\n")
	for i, item := range order.Items {
		b.WriteString(f.formatItem(i+1, item))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "💰 <b>Subtotal:</b> %s\n", f.formatAmount(order.Subtotal))
	fmt.Fprintf(&b, "🚚 <b>Delivery:</b> %s\n", f.formatDelivery(order.Shipping))
	if order.Discount != nil && math.Round(*order.Discount) != 0 {
		fmt.Fprintf(&b, "🏷️ <b>Discount:</b> %s\n", f.formatAmount(-*order.Discount))
	}
	fmt.Fprintf(&b, "💵 <b>TOTAL: %s (%s)</b>",
		f.formatAmount(*order.Total), esc(firstNonEmpty("N/A", order.PaymentMethod.Type)))

	return strings.TrimSpace(b.String()), nil
}

// FormatServiceRequestMessage renders a service request notification.
// It returns a contract violation when the id is missing.
func (f *Formatter) FormatServiceRequestMessage(req *ServiceRequestNotificationInput) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	var serviceName, serviceAddress string
	if req.Service != nil {
		serviceName, serviceAddress = req.Service.Name, req.Service.Address
	}
	var userName, userEmail, userMobile string
	if req.User != nil {
		userName, userEmail, userMobile = req.User.Name, req.User.Email, req.User.Mobile
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🛠️ <b>NEW SERVICE REQUEST #%s</b>\n\n", esc(ShortCode(req.ID)))
	fmt.Fprintf(&b, "🔧 <b>Service:</b> %s\n", esc(firstNonEmpty("Unknown Service", serviceName)))
	fmt.Fprintf(&b, "📌 <b>Status:</b> %s\n\n", esc(firstNonEmpty("Pending", req.Status)))
	fmt.Fprintf(&b, "👤 <b>Customer:</b> %s\n", esc(firstNonEmpty("Customer", userName)))
	fmt.Fprintf(&b, "📧 <b>Email:</b> %s\n", esc(firstNonEmpty("N/A", userEmail)))
	fmt.Fprintf(&b, "📞 <b>Phone:</b> %s\n", esc(firstNonEmpty("N/A", userMobile)))
	fmt.Fprintf(&b, "📍 <b>Address:</b> %s\n", esc(firstNonEmpty("N/A", serviceAddress)))

	return strings.TrimSpace(b.String()), nil
}

func (f *Formatter) formatItem(index int, item OrderItem) string {
	var productTitle, productUnit, storeName string
	if item.Product != nil {
		productTitle, productUnit = item.Product.Title, item.Product.Unit
	}
	if item.Store != nil {
		storeName = item.Store.Name
	}

	return fmt.Sprintf("%d. %s (%s)  QTY: %d | 🏪 %s",
		index,
		esc(firstNonEmpty("Item", item.Name, productTitle)),
		esc(firstNonEmpty("unit", item.Unit, productUnit)),
		item.Quantity,
		esc(firstNonEmpty(f.platformName, storeName)),
	)
}

func (f *Formatter) formatDelivery(shipping float64) string {
	if shipping == 0 {
		return freeDelivery
	}
	return f.formatAmount(shipping)
}

func (f *Formatter) formatScheduled(at *time.Time) string {
	if at == nil || at.IsZero() {
		return "Not specified"
	}
	return at.In(f.location).Format(scheduledLayout)
}

// maxDisplayAmount bounds rendered amounts so the int64 conversion is exact.
const maxDisplayAmount = 1e15

// formatAmount renders v with zero decimals and comma grouping. Negative
// amounts put the sign before the symbol; NaN renders as zero and
// magnitudes above maxDisplayAmount are clamped.
func (f *Formatter) formatAmount(v float64) string {
	if math.IsNaN(v) {
		v = 0
	}
	r := math.Round(v)
	sign := ""
	if r < 0 {
		sign, r = "-", -r
	}
	r = math.Min(r, maxDisplayAmount)
	return sign + f.currencySymbol + humanize.Comma(int64(r))
}

func formatAddress(addr ShippingAddress) string {
	var parts []string
	for _, p := range []string{addr.Street, addr.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	line := strings.Join(parts, ", ")
	if zip := strings.TrimSpace(addr.Zip); zip != "" {
		if line == "" {
			return zip
		}
		line += " - " + zip
	}
	return firstNonEmpty("N/A", line)
}

// firstNonEmpty returns the first candidate that is not blank, in order,
// or fallback when every candidate is blank.
func firstNonEmpty(fallback string, candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return fallback
}

// esc escapes user-supplied text for Telegram's HTML parse mode.
func esc(s string) string {
	return html.EscapeString(s)
}
