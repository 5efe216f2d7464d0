package model

import "fmt"

// Describe renders the deterministic metadata descriptor for a position
// snapshot. Symbols default to shortened addresses when empty.
func Describe(snap PositionSnapshot, symbol0, symbol1 string) Descriptor {
	if symbol0 == "" {
		symbol0 = shortAddr(snap.Token0)
	}
	if symbol1 == "" {
		symbol1 = shortAddr(snap.Token1)
	}
	pair := fmt.Sprintf("%s/%s", symbol0, symbol1)
	return Descriptor{
		Name: fmt.Sprintf("Liquidity Position #%d - %s %s", snap.TokenID, pair, feePercent(snap.Fee)),
		Description: fmt.Sprintf(
			"Position %d holds %s liquidity in the %s %s pool over ticks [%d, %d).",
			snap.TokenID, snap.Liquidity, pair, feePercent(snap.Fee), snap.TickLower, snap.TickUpper,
		),
	}
}

// feePercent renders a hundredths-of-a-bip fee tier as a percentage, e.g.
// 3000 -> "0.3%".
func feePercent(fee uint32) string {
	whole := fee / 10000
	frac := fee % 10000
	if frac == 0 {
		return fmt.Sprintf("%d%%", whole)
	}
	s := fmt.Sprintf("%04d", frac)
	for len(s) > 1 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	return fmt.Sprintf("%d.%s%%", whole, s)
}

func shortAddr(hex string) string {
	if len(hex) <= 10 {
		return hex
	}
	return hex[:6] + ".." + hex[len(hex)-4:]
}
