package telegram

import (
	"strconv"
	"strings"

	"github.com/weed35937/tele-bot-digital/app/entity"
)

type commandKind int32

const (
	commandUnknown commandKind = iota
	commandMainMenu
	commandViewProducts
	commandMyOrders
	commandSelectProduct
	commandPay
)

// command is the tagged form of an inline-button callback. The raw callback
// string is decoded exactly once, here; everything downstream matches on the
// tag.
type command struct {
	kind      commandKind
	productID uint64
	method    entity.PaymentMethod
}

func parseCallback(data string) command {
	data = strings.TrimSpace(data)

	switch data {
	case "start":
		return command{kind: commandMainMenu}
	case "view_products":
		return command{kind: commandViewProducts}
	case "my_orders":
		return command{kind: commandMyOrders}
	}

	if rest, ok := strings.CutPrefix(data, "product_"); ok {
		if id, err := strconv.ParseUint(rest, 10, 64); err == nil {
			return command{kind: commandSelectProduct, productID: id}
		}
		return command{kind: commandUnknown}
	}

	for prefix, method := range map[string]entity.PaymentMethod{
		"pay_card_":   entity.MethodCard,
		"pay_paypal_": entity.MethodPayPal,
		"pay_crypto_": entity.MethodCrypto,
	} {
		if rest, ok := strings.CutPrefix(data, prefix); ok {
			if id, err := strconv.ParseUint(rest, 10, 64); err == nil {
				return command{kind: commandPay, productID: id, method: method}
			}
			return command{kind: commandUnknown}
		}
	}

	return command{kind: commandUnknown}
}

func payCallbackData(method entity.PaymentMethod, productID uint64) string {
	id := strconv.FormatUint(productID, 10)
	switch method {
	case entity.MethodCard:
		return "pay_card_" + id
	case entity.MethodPayPal:
		return "pay_paypal_" + id
	case entity.MethodCrypto:
		return "pay_crypto_" + id
	default:
		return ""
	}
}
