package pricing

import (
	"context"

	"github.com/salonflow/backend/services/booking-service/internal/model"
)

// Quote is the price captured at booking time. Later catalog edits do not
// reprice existing appointments.
type Quote struct {
	AmountCents int64
	Currency    string
}

// Provider computes the price of a service for a client. Promotions or
// per-client discounts slot in behind this interface.
type Provider interface {
	Quote(ctx context.Context, svc model.Service, clientID string) (Quote, error)
}

// StaticProvider charges the catalog price unchanged.
type StaticProvider struct{}

func NewStaticProvider() StaticProvider { return StaticProvider{} }

func (StaticProvider) Quote(_ context.Context, svc model.Service, _ string) (Quote, error) {
	return Quote{AmountCents: svc.PriceCents, Currency: svc.Currency}, nil
}
