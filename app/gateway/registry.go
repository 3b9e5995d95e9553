package gateway

import "github.com/weed35937/tele-bot-digital/app/entity"

type Registry struct {
	gateways map[entity.PaymentMethod]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	items := make(map[entity.PaymentMethod]Gateway, len(gateways))
	for _, g := range gateways {
		items[g.Method()] = g
	}
	return &Registry{gateways: items}
}

func (r *Registry) Get(method entity.PaymentMethod) (Gateway, error) {
	g, ok := r.gateways[method]
	if !ok {
		return nil, ErrNotSupported
	}
	return g, nil
}
