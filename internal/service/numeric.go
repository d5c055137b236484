package service

import (
	"fmt"
	"strconv"
	"strings"

	"assetbook/internal/models"
)

// parseCount parses an optional occupancy count. Empty input means the
// field is omitted; anything else must be a non-negative integer.
func parseCount(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("number of people must be a non-negative integer, got %q", raw)
	}
	return &n, nil
}

// parseAmount parses an optional monetary override. Empty input means the
// field is omitted; anything else must be a non-negative decimal.
func parseAmount(field, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("%s must be a non-negative number, got %q", field, raw)
	}
	return &v, nil
}

// normalizeAgentFee drops an override that matches the asset default, so
// later asset fee changes flow through to bookings without one.
func normalizeAgentFee(fee *float64, asset *models.Asset) *float64 {
	if fee != nil && *fee == asset.AgentFee {
		return nil
	}
	return fee
}

func applyNumericFields(b *models.Booking, asset *models.Asset, people, price, agentFee string) error {
	n, err := parseCount(people)
	if err != nil {
		return err
	}
	b.NumberOfPeople = n

	p, err := parseAmount("custom price", price)
	if err != nil {
		return err
	}
	b.CustomPrice = p

	f, err := parseAmount("custom agent fee", agentFee)
	if err != nil {
		return err
	}
	b.CustomAgentFee = normalizeAgentFee(f, asset)
	return nil
}

func applyNumericUpdates(b *models.Booking, asset *models.Asset, req UpdateRequest) error {
	if req.NumberOfPeople != nil {
		n, err := parseCount(*req.NumberOfPeople)
		if err != nil {
			return err
		}
		b.NumberOfPeople = n
	}
	if req.CustomPrice != nil {
		p, err := parseAmount("custom price", *req.CustomPrice)
		if err != nil {
			return err
		}
		b.CustomPrice = p
	}
	if req.CustomAgentFee != nil {
		f, err := parseAmount("custom agent fee", *req.CustomAgentFee)
		if err != nil {
			return err
		}
		b.CustomAgentFee = normalizeAgentFee(f, asset)
	}
	return nil
}
